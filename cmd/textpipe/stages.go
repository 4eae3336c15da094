package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/textpipe/internal/annotators"
	"github.com/jackzampolin/textpipe/internal/pipeline"
	"github.com/jackzampolin/textpipe/internal/report"
)

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "List the registered annotation stages",
	Long: `List every registered stage with the capabilities it requires and provides.

Stages are constructed with the current configuration; a stage that cannot be
built (for example sentiment without an API key) is listed with its error.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, _, err := loadConfig()
		if err != nil {
			return err
		}
		reg, err := annotators.NewRegistry()
		if err != nil {
			return err
		}
		cache := pipeline.NewCache(reg, logger)
		defer cache.Reset()

		return printer.Print(describeStages(reg, cache, mgr.Get().Properties()))
	},
}

func describeStages(reg *pipeline.Registry, cache *pipeline.Cache, props pipeline.Properties) []report.StageInfo {
	infos := make([]report.StageInfo, 0, len(reg.Names()))
	for _, f := range reg.List() {
		info := report.StageInfo{Name: f.Name, Description: f.Description}
		s, err := cache.Get(f.Name, props)
		if err != nil {
			info.Error = err.Error()
		} else {
			info.Requires = s.Requires().Strings()
			info.Provides = s.Provides().Strings()
		}
		infos = append(infos, info)
	}
	return infos
}

func init() {
	rootCmd.AddCommand(stagesCmd)
}
