package main

import (
  "fmt"
  "os"
  "sort"
  "strings"

  "github.com/rs/zerolog"
)

type command struct {
  usage string
  run   func(args []string) error
}

var commands = map[string]*command{
  "create": {"create an idmap from a target apk and an overlay apk", runCreate},
  "dump":   {"print the content of an idmap", runDump},
  "lookup": {"map a target resource id through an idmap", runLookup},
  "verify": {"check an idmap against its target and overlay apks", runVerify},
  "path":   {"print the canonical idmap path of an overlay apk", runPath},
  "serve":  {"run the idmap2 service", runServe},
}

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true}).With().Timestamp().Logger()

func main() {
  if len(os.Args) < 2 {
    usage()
    os.Exit(2)
  }
  cmd, ok := commands[os.Args[1]]
  if !ok {
    fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
    usage()
    os.Exit(2)
  }
  if e := cmd.run(os.Args[2:]); e != nil {
    logger.Error().Msgf("%s: %v", os.Args[1], e)
    os.Exit(1)
  }
}

func usage() {
  names := make([]string, 0, len(commands))
  for name := range commands {
    names = append(names, name)
  }
  sort.Strings(names)
  fmt.Fprintln(os.Stderr, "usage: idmap2 <command> [flags]")
  for _, name := range names {
    fmt.Fprintf(os.Stderr, "  %-8s %s\n", name, commands[name].usage)
  }
}

// 可以重复指定的参数
type stringList []string

func (l *stringList) String() string {
  return strings.Join(*l, ",")
}

func (l *stringList) Set(v string) error {
  *l = append(*l, v)
  return nil
}
