/*
Package resilience provides a circuit breaker for operations that should
back off after repeated failures.

The terminal host uses it to guard background shell pre-warming: when the
configured shell cannot be spawned, the pool stops retrying on every session
start and probes again after a cooldown.

# Usage

	breaker := resilience.New("prewarm", resilience.Settings{
		Threshold: 3,
		Cooldown:  30 * time.Second,
	})

	err := breaker.Do(func() error {
		return spawn()
	})

# States

	Closed --[Threshold failures]-> Open --[Cooldown]-> Half-Open --[success]-> Closed
	                                                        |
	                                                    [failure]
	                                                        |
	                                                        v
	                                                      Open

A half-open breaker admits one probe at a time.
*/
package resilience
