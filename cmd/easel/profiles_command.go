package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"easel/internal/api"
)

func newProfilesCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var local bool
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List configured workflow profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			var profiles []api.Profile
			if local {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				profiles = api.FromProfiles(cfg)
			} else {
				err := ctx.withClient(func(client *api.Client) error {
					resp, err := client.Profiles(cmd.Context())
					if err != nil {
						return err
					}
					profiles = resp.Profiles
					return nil
				})
				if err != nil {
					return err
				}
			}
			if asJSON {
				return writeJSON(cmd, api.ProfilesResponse{Profiles: profiles})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderProfilesTable(profiles))
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output profiles as JSON")
	cmd.Flags().BoolVar(&local, "local", false, "Read profiles from the local configuration instead of the daemon")
	return cmd
}

func renderProfilesTable(profiles []api.Profile) string {
	rows := make([][]string, 0, len(profiles))
	for _, profile := range profiles {
		alias := profile.Alias
		if profile.Default {
			alias += " *"
		}
		rows = append(rows, []string{
			alias,
			strconv.Itoa(profile.PermissionLevel),
			profile.PromptNode,
			strings.Join(profile.AssetSlots, ","),
			profile.FilePath,
		})
	}
	return renderTable(
		[]string{"Alias", "Level", "Prompt", "Slots", "Template"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
	)
}
