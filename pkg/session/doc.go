/*
Package session serializes conversation turns per session key.

A key identifies one (user, platform) pair. The Manager hands out
per-key mutexes with reference counting so idle keys cost nothing, and
optionally layers a distributed lock on top for multi-replica
deployments.
*/
package session
