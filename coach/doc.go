// Package coach answers trainee chat turns and conversation analyses from a
// language model, serving repeats from in-process caches.
//
// A Service holds two stores: one of chat replies keyed by cache.ChatKey and
// one of analyses keyed by cache.AnalysisKey. A miss calls the Model through
// a resilience.Executor, wrapped in observe.Middleware for tracing, metrics
// and logging. Concurrent misses for the same key share one model call.
//
// # Usage
//
//	svc, err := coach.NewService(model, coach.DefaultConfig(),
//		coach.WithObserver(obs),
//	)
//	if err != nil {
//		return err
//	}
//
//	janitor, _ := svc.Maintenance(time.Minute)
//	go janitor.Run(ctx)
//
//	agg := health.NewAggregator()
//	agg.RegisterAll(svc.HealthCheckers()...)
//
//	reply, err := svc.Reply(ctx, coach.ChatRequest{
//		Mode:       "training",
//		Message:    "I can offer 40k.",
//		Difficulty: 3,
//	})
//
// Model errors are never cached; the next identical request calls the model
// again.
package coach
