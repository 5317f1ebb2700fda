package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"nc-warden.io/warden/internal/bulk"
	"nc-warden.io/warden/internal/controller"
	"nc-warden.io/warden/internal/group"
)

func newGroupCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "group",
		Aliases: []string{"groups"},
		Short:   "Manage named client groups",
		Long: `Groups address sets of clients by name. Static groups carry an
explicit member list; auto groups match clients by rules (vendor, name,
hostname, network, ip_range, mac_prefix, connection_type) evaluated
against a fresh controller snapshot at action time.

Group definitions live in the local store, so creating and editing
groups works without a reachable controller.`,
	}
	cmd.AddCommand(
		newGroupCreateCmd(e),
		newGroupListCmd(e),
		newGroupShowCmd(e),
		newGroupEditCmd(e),
		newGroupDeleteCmd(e),
		newGroupAddCmd(e),
		newGroupRemoveCmd(e),
		newGroupAliasCmd(e),
		newGroupExportCmd(e),
		newGroupImportCmd(e),
		newGroupActionCmd(e, "block", "Block every client the group resolves to"),
		newGroupActionCmd(e, "unblock", "Unblock every client the group resolves to"),
		newGroupActionCmd(e, "kick", "Disconnect every client the group resolves to"),
	)
	return cmd
}

// parseMemberSpec parses "mac" or "mac=alias".
func parseMemberSpec(spec string) group.Member {
	mac, alias, _ := strings.Cut(spec, "=")
	return group.Member{MAC: strings.TrimSpace(mac), Alias: strings.TrimSpace(alias)}
}

// parseRuleSpec parses "type:pattern".
func parseRuleSpec(spec string) (group.Rule, error) {
	typ, pattern, ok := strings.Cut(spec, ":")
	if !ok {
		return group.Rule{}, fmt.Errorf("rule %q must have the form type:pattern (e.g. name:cam*)", spec)
	}
	rt, err := group.ParseRuleType(typ)
	if err != nil {
		return group.Rule{}, err
	}
	return group.Rule{Type: rt, Pattern: strings.TrimSpace(pattern)}, nil
}

func parseRuleSpecs(specs []string) ([]group.Rule, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	rules := make([]group.Rule, 0, len(specs))
	for _, spec := range specs {
		r, err := parseRuleSpec(spec)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func newGroupCreateCmd(e *env) *cobra.Command {
	var (
		description string
		kind        string
		memberSpecs []string
		ruleSpecs   []string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a group",
		Example: `  # Static group with two members
  warden group create "Kids Devices" --member aa:bb:cc:dd:ee:01=tablet --member aa:bb:cc:dd:ee:02

  # Auto group matching all cameras on the IoT network
  warden group create Cameras --rule "name:cam*" --rule "network:IoT"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.application()
			if err != nil {
				return err
			}

			rules, err := parseRuleSpecs(ruleSpecs)
			if err != nil {
				return err
			}
			members := make([]group.Member, 0, len(memberSpecs))
			for _, spec := range memberSpecs {
				members = append(members, parseMemberSpec(spec))
			}

			// Rules imply an auto group unless --kind says otherwise.
			if !cmd.Flags().Changed("kind") && len(rules) > 0 {
				kind = string(group.KindAuto)
			}

			g, err := a.Groups.Create(args[0], description, group.Kind(kind), members, rules)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s group %q (id %s)\n", g.Kind, g.Name, g.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "desc", "", "Group description")
	cmd.Flags().StringVar(&kind, "kind", string(group.KindStatic), "Group kind: static or auto")
	cmd.Flags().StringArrayVar(&memberSpecs, "member", nil, "Member MAC, optionally mac=alias (repeatable)")
	cmd.Flags().StringArrayVar(&ruleSpecs, "rule", nil, "Auto-group rule type:pattern (repeatable)")
	return cmd
}

func newGroupListCmd(e *env) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.application()
			if err != nil {
				return err
			}
			groups, err := a.Groups.List()
			if err != nil {
				return err
			}

			return render(cmd.OutOrStdout(), output, groups, func(out io.Writer) error {
				if len(groups) == 0 {
					_, err := fmt.Fprintln(out, "No groups defined.")
					return err
				}
				w := newTabWriter(out)
				fmt.Fprintln(w, "ID\tNAME\tKIND\tSIZE\tDESCRIPTION")
				for _, g := range groups {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
						g.ID, g.Name, g.Kind, groupSize(&g), dash(g.Description))
				}
				return w.Flush()
			})
		},
	}
	addOutputFlag(cmd, &output)
	return cmd
}

func groupSize(g *group.Group) string {
	if g.IsStatic() {
		return fmt.Sprintf("%d member(s)", len(g.Members))
	}
	return fmt.Sprintf("%d rule(s)", len(g.Rules))
}

func newGroupShowCmd(e *env) *cobra.Command {
	var output string
	var resolve bool

	cmd := &cobra.Command{
		Use:   "show <group>",
		Short: "Show a group definition",
		Long: `Show a group by id or name. With --resolve the current membership
is included: static groups resolve from the stored list, auto groups
against a fresh controller snapshot.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.application()
			if err != nil {
				return err
			}
			g, err := a.Groups.Get(args[0])
			if err != nil {
				return err
			}

			var macs []string
			if resolve {
				var snapshot []controller.Client
				if !g.IsStatic() {
					if _, err := e.connected(); err != nil {
						return err
					}
					snapshot, err = controller.Snapshot(cmd.Context(), a.Ctrl)
					if err != nil {
						return err
					}
				}
				macs, err = a.Resolver.ResolveGroup(g, snapshot)
				if err != nil {
					return err
				}
			}

			view := struct {
				*group.Group `yaml:",inline"`
				Resolved     []string `json:"resolved,omitempty" yaml:"resolved,omitempty"`
			}{Group: g, Resolved: macs}

			return render(cmd.OutOrStdout(), output, view, func(out io.Writer) error {
				return renderGroupDetail(out, g, resolve, macs)
			})
		},
	}
	cmd.Flags().BoolVar(&resolve, "resolve", false, "Include the resolved member MACs")
	addOutputFlag(cmd, &output)
	return cmd
}

func renderGroupDetail(out io.Writer, g *group.Group, resolved bool, macs []string) error {
	w := newTabWriter(out)
	fmt.Fprintf(w, "ID:\t%s\n", g.ID)
	fmt.Fprintf(w, "Name:\t%s\n", g.Name)
	if g.Description != "" {
		fmt.Fprintf(w, "Description:\t%s\n", g.Description)
	}
	fmt.Fprintf(w, "Kind:\t%s\n", g.Kind)
	if g.IsStatic() {
		fmt.Fprintf(w, "Members:\t%d\n", len(g.Members))
		for _, m := range g.Members {
			if m.Alias != "" {
				fmt.Fprintf(w, "\t%s (%s)\n", m.MAC, m.Alias)
			} else {
				fmt.Fprintf(w, "\t%s\n", m.MAC)
			}
		}
	} else {
		fmt.Fprintf(w, "Rules:\t%d\n", len(g.Rules))
		for _, r := range g.Rules {
			fmt.Fprintf(w, "\t%s: %s\n", r.Type, r.Pattern)
		}
	}
	if resolved {
		fmt.Fprintf(w, "Resolved:\t%d client(s)\n", len(macs))
		for _, mac := range macs {
			fmt.Fprintf(w, "\t%s\n", mac)
		}
	}
	return w.Flush()
}

func newGroupEditCmd(e *env) *cobra.Command {
	var (
		name        string
		description string
		ruleSpecs   []string
	)

	cmd := &cobra.Command{
		Use:   "edit <group>",
		Short: "Rename or re-describe a group; replace an auto group's rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.application()
			if err != nil {
				return err
			}

			var up group.Update
			if cmd.Flags().Changed("name") {
				up.Name = &name
			}
			if cmd.Flags().Changed("desc") {
				up.Description = &description
			}
			if cmd.Flags().Changed("rule") {
				rules, err := parseRuleSpecs(ruleSpecs)
				if err != nil {
					return err
				}
				up.Rules = rules
			}
			if up.Name == nil && up.Description == nil && up.Rules == nil {
				return fmt.Errorf("nothing to change: pass --name, --desc, or --rule")
			}

			g, err := a.Groups.Edit(args[0], up)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated group %q (id %s)\n", g.Name, g.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "New display name (the id never changes)")
	cmd.Flags().StringVar(&description, "desc", "", "New description")
	cmd.Flags().StringArrayVar(&ruleSpecs, "rule", nil, "Replacement rule type:pattern (repeatable; replaces all rules)")
	return cmd
}

func newGroupDeleteCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <group>",
		Short: "Delete a group and its membership",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.application()
			if err != nil {
				return err
			}
			g, err := a.Groups.Get(args[0])
			if err != nil {
				return err
			}
			if err := a.Groups.Delete(g.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted group %q (id %s)\n", g.Name, g.ID)
			return nil
		},
	}
}

func newGroupAddCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "add <group> <mac[=alias]>...",
		Short: "Add members to a static group",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.application()
			if err != nil {
				return err
			}
			members := make([]group.Member, 0, len(args)-1)
			for _, spec := range args[1:] {
				members = append(members, parseMemberSpec(spec))
			}
			g, added, err := a.Groups.AddMembers(args[0], members)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %d member(s) to %q (%d total)\n",
				added, g.Name, len(g.Members))
			return nil
		},
	}
}

func newGroupRemoveCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <group> <mac-or-alias>...",
		Short: "Remove members from a static group",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.application()
			if err != nil {
				return err
			}
			g, removed, err := a.Groups.RemoveMembers(args[0], args[1:])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d member(s) from %q (%d left)\n",
				removed, g.Name, len(g.Members))
			return nil
		},
	}
}

func newGroupAliasCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "alias <group> <mac> [alias]",
		Short: "Set or clear a member's alias",
		Long:  `Set a member's alias. Omitting the alias argument clears it.`,
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.application()
			if err != nil {
				return err
			}
			alias := ""
			if len(args) == 3 {
				alias = args[2]
			}
			g, err := a.Groups.SetAlias(args[0], args[1], alias)
			if err != nil {
				return err
			}
			if alias == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared alias on %s in %q\n", args[1], g.Name)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Aliased %s as %q in %q\n", args[1], alias, g.Name)
			}
			return nil
		},
	}
}

// groupExportDoc is the export/import file format.
type groupExportDoc struct {
	Groups []group.Group `json:"groups" yaml:"groups"`
}

func newGroupExportCmd(e *env) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all group definitions to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.application()
			if err != nil {
				return err
			}
			groups, err := a.Groups.Export()
			if err != nil {
				return err
			}

			doc := groupExportDoc{Groups: groups}
			if output == formatJSON {
				return renderJSON(cmd.OutOrStdout(), doc)
			}
			return renderYAML(cmd.OutOrStdout(), doc)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", formatYAML, "Output format: yaml or json")
	return cmd
}

func newGroupImportCmd(e *env) *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Load group definitions from a file",
		Long: `Load groups from a YAML or JSON export. By default incoming groups
merge over existing ones by id; with --replace the file becomes the
entire store. Pass - to read from stdin.

Every incoming group is validated first; one invalid group aborts the
whole import before anything is written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.application()
			if err != nil {
				return err
			}

			var data []byte
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("read import file: %w", err)
			}

			// YAML is a superset of JSON, so one parser covers both formats.
			var doc groupExportDoc
			if err := yaml.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("parse import file: %w", err)
			}

			res, err := a.Groups.Import(doc.Groups, replace)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d group(s): %d added, %d updated, %d removed\n",
				res.Imported, res.Added, res.Updated, res.Removed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "Replace the entire store instead of merging")
	return cmd
}

func newGroupActionCmd(e *env, action, short string) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   action + " <group>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.connected()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			g, err := a.Groups.Get(args[0])
			if err != nil {
				return err
			}
			snapshot, err := controller.Snapshot(ctx, a.Ctrl)
			if err != nil {
				return err
			}
			macs, err := a.Resolver.ResolveGroup(g, snapshot)
			if err != nil {
				return err
			}
			if len(macs) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Group %q resolves to no clients; nothing to do.\n", g.Name)
				return nil
			}

			ok, err := confirm(cmd, yes,
				fmt.Sprintf("About to %s %d client(s) in group %q. Continue?", action, len(macs), g.Name))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}

			res, err := a.Executor.Apply(ctx, bulk.Action(action), macs, snapshot)
			if err != nil {
				return err
			}
			return renderBulkResult(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}
