package store

import "go.uber.org/fx"

// Module wires the in-memory collaborator implementations. Deployments
// with real backends replace the providers, not the interfaces.
var Module = fx.Module("store",
	fx.Provide(
		NewMemoryMessageStore,
		fx.Annotate(
			func(s *MemoryMessageStore) MessageStore { return s },
			fx.As(new(MessageStore)),
		),
		NewMemoryDirectory,
		fx.Annotate(
			func(d *MemoryDirectory) Directory { return d },
			fx.As(new(Directory)),
		),
		NewMemoryVerifier,
		fx.Annotate(
			func(v *MemoryVerifier) SessionVerifier { return v },
			fx.As(new(SessionVerifier)),
		),
		fx.Annotate(
			NewMemoryMediaResolver,
			fx.As(new(MediaResolver)),
		),
	),
	// Every MessageStore consumer sees the breaker, not the raw store.
	fx.Decorate(func(next MessageStore) MessageStore {
		return NewBreakerStore(next)
	}),
)
