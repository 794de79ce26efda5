// Package gateway runs the HTTP listener that fronts the billing backend.
//
// Every request goes through a single handler chain mounted on a gin
// engine's NoRoute hook; the chain ends in the request gate and the
// upstream proxy.
//
//	gw, err := gateway.New(cfg,
//	    gateway.WithLogger(logger),
//	    gateway.WithHandler(chain),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := gw.Start(ctx); err != nil {
//	    return err
//	}
//	defer gw.Stop(ctx)
package gateway
