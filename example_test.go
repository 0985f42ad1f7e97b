package arbor_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// Example wires a one-block flow against an in-memory store and a
// print-to-stdout connector.
func Example() {
	ctx := context.Background()

	store := memory.NewStore()
	_ = store.SaveBlock(ctx, &domain.Block{
		ID:      1,
		Name:    "welcome",
		Script:  `send_message("hello, " .. input_text)`,
		IsStart: true,
	})

	connector := ports.ConnectorFunc(func(ctx context.Context, userID string, msg domain.Message) error {
		fmt.Println(msg.Text)
		return nil
	})

	bot, err := arbor.New(store, connector)
	if err != nil {
		log.Fatal(err)
	}

	bot.Process(ctx, "42", "console", "world", nil)
	// Output: hello, world
}
