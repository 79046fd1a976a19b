// motctl is the operator console for a running emcmot controller. With
// arguments it runs them as a single command; otherwise it reads
// commands from stdin, one per line.
//
// Usage:
//
//	motctl [-config machine.ini | -shmem path] [command args...]
//
// Options:
//
//	-config string    Machine configuration (shared region and timeouts)
//	-shmem string     Shared region path, overrides -config
//	-timeout duration Command echo timeout (default from config, else 1s)
//	-loglevel string  debug, info, warn or error (default "warn")
//
// Examples:
//
//	motctl -config machine.ini enable
//	motctl -config machine.ini status "{{ x }} {{ y }}"
//	motctl -shmem /dev/shm/emcmot-100 < program.txt
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"emcmot-go/pkg/config"
	"emcmot-go/pkg/log"
	"emcmot-go/pkg/usrmot"
)

func main() {
	configFile := flag.String("config", "", "Machine configuration file")
	shmemPath := flag.String("shmem", "", "Shared region path")
	timeout := flag.Duration("timeout", 0, "Command echo timeout")
	logLevel := flag.String("loglevel", "warn", "Log level")
	flag.Parse()

	root := log.New("motctl")
	root.SetLevel(log.ParseLevel(*logLevel))
	log.SetDefaultLogger(root)

	opts := usrmot.Options{Timeout: *timeout}
	path := *shmemPath
	if *configFile != "" {
		m, err := config.LoadMachineFile(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if path == "" {
			path = m.ShmemPath
		}
		if opts.Timeout == 0 {
			opts.Timeout = m.CommTimeout
		}
		opts.Wait = m.CommWait
	}
	if path == "" {
		path = config.ShmemPathForKey(100)
	}

	client, err := usrmot.Connect(path, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	sh, err := newShell(client, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if flag.NArg() > 0 {
		line := quoteArgs(flag.Args())
		if err := sh.Exec(line); err != nil && err != errQuit {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			client.Close()
			os.Exit(1)
		}
		return
	}
	if err := sh.Run(os.Stdin, isTerminal(os.Stdin)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
}

var argQuoter = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// quoteArgs rebuilds a command line the shell splits back into args.
func quoteArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = `"` + argQuoter.Replace(a) + `"`
	}
	return strings.Join(quoted, " ")
}
