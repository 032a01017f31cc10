package ports

import "context"

// Entry es un par clave/valor a persistir.
type Entry struct {
	Key   string
	Value string
}

// KVStore es el contrato mínimo de persistencia duradera.
type KVStore interface {
	// Get devuelve el valor y ok=false si la clave no existe.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	Set(ctx context.Context, key, value string) error

	// SetMany escribe todas las entradas atómicamente: o todas o ninguna.
	SetMany(ctx context.Context, entries []Entry) error

	Close() error
}

// Committer acepta escrituras fire-and-forget. Las entradas de una misma
// llamada se escriben juntas y en el orden de llegada.
type Committer interface {
	Enqueue(entries ...Entry)
}
