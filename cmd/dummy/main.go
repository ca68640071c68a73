package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"thor/internal/dummy"
)

func main() {
	var port int

	cmd := &cobra.Command{
		Use:   "dummy",
		Short: "Serve local endpoints to point thor at",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			dummy.Start(dummy.ServerConfig{Port: port})
			select {}
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to run dummy server on")

	if err := cmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
