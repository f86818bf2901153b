package main

import (
  "context"
  "flag"
  "os"
  "os/signal"
  "syscall"
  "time"

  "github.com/kwf2030/idmap2/service"
)

func runServe(args []string) error {
  fs := flag.NewFlagSet("serve", flag.ContinueOnError)
  conf := fs.String("config", "", "yaml config file")
  listen := fs.String("listen", "", "listen address, overrides the config file")
  if e := fs.Parse(args); e != nil {
    return e
  }
  cfg := service.DefaultConfig()
  if *conf != "" {
    var e error
    if cfg, e = service.LoadConfig(*conf); e != nil {
      return e
    }
  }
  if *listen != "" {
    cfg.Listen = *listen
  }

  lg, closer, e := service.NewLogger(cfg.LogLevel, cfg.LogFile)
  if e != nil {
    return e
  }
  defer closer.Close()
  svc, e := service.New(cfg, lg)
  if e != nil {
    return e
  }
  srv := service.NewServer(svc, cfg, lg)

  ch := make(chan os.Signal, 1)
  signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
  go func() {
    sig := <-ch
    lg.Info().Str("signal", sig.String()).Msg("shutdown")
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    srv.Shutdown(ctx)
  }()
  return srv.ListenAndServe()
}
