package main

import (
	"github.com/spf13/cobra"

	"github.com/user/swarmd/internal/hook"
)

func init() {
	rootCmd.AddCommand(hookCmd)
}

// hookCmd is the fire-and-forget entry point wired into worker tool-call
// instrumentation (SessionStart, PostToolUse, and friends). It always
// exits 0: the instrumented worker's operation must never fail because
// the coordination root was slow or absent.
var hookCmd = &cobra.Command{
	Use:   "hook <event-type> [data]",
	Short: "Record an agent event and refresh its heartbeat",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		_, events, agents := stores(cfg)
		ingestor := hook.NewIngestor(events, agents)
		emitter := hook.NewEmitter(ingestor, cfg.Hook.MaxInFlight, cfg.HookTimeout())

		data := ""
		if len(args) == 2 {
			data = args[1]
		}
		emitter.Emit(agentIdentity(cfg), args[0], data)
		emitter.Wait()
		return nil
	},
}
