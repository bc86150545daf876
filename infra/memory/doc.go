// Package memory recycles orders that leave the book. Pool wraps
// sync.Pool for allocation reuse, RetireRing holds retired orders in a
// single-producer single-consumer ring until no depth reader can still
// observe them, and AdvanceEpochAndReclaim uses global epoch tracking
// to move what is safe back into the pool.
package memory
