// Package core contains the formrelay domain contracts, entities, and the
// asynchronous dispatch pipeline (queue, worker, retry policy, connector
// registry, configuration resolver). Adapters and stores depend on this
// package; core must not depend on connector or storage implementations.
package core
