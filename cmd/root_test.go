package cmd

import "testing"

func TestRootCmd_HasBalanceAndAllocateSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"balance", "allocate", "version"} {
		if !names[want] {
			t.Errorf("expected rootCmd to have a %q subcommand", want)
		}
	}
}
