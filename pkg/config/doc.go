/*
Package config provides the agent's bootstrap configuration and the persisted
settings store.

The YAML file read by Load covers everything fixed for the process lifetime:
endpoints, keys, worker count, refresh interval, logging. Mutable settings
(session counts, encoded keys) live in a bbolt database managed by Store; the
YAML values only seed the store on first run.

Store commits every mutation synchronously inside a single bbolt transaction,
so the persisted value always reflects the in-memory value once a mutating
call returns. Scaling events are rare administrative actions, which makes
flush-per-mutation acceptable.
*/
package config
