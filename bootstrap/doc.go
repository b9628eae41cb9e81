// Package bootstrap runs a chunkscribe command inside a uniform lifecycle:
// validate config, start components, run hooks, do the work, shut down.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.RegisterComponent(database.NewComponent(cfg.Database, app.Logger))
//	err = app.RunTask(ctx, func(ctx context.Context) error {
//	    return orch.Run(ctx, req)
//	})
//
// SIGINT and SIGTERM cancel the task's context; components are stopped in
// reverse order within the graceful timeout.
package bootstrap
