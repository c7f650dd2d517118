package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/resourcekit/internal/constants"
	"github.com/fivetwenty-io/resourcekit/pkg/resource"
	"github.com/fivetwenty-io/resourcekit/pkg/services"
)

// NewResourcesCommand lists the registered resources.
func NewResourcesCommand(registry *services.Registry) *cobra.Command {
	return &cobra.Command{
		Use:   "resources",
		Short: "List known resources",
		Long:  "List every registered resource with its service, path and supported operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			type resourceInfo struct {
				Name       string   `json:"name"       yaml:"name"`
				Service    string   `json:"service"    yaml:"service"`
				Path       string   `json:"path"       yaml:"path"`
				Operations []string `json:"operations" yaml:"operations"`
			}

			infos := make([]resourceInfo, 0, len(registry.Names()))

			for _, schema := range registry.Schemas() {
				ops := schema.Capabilities().Operations()
				names := make([]string, 0, len(ops))

				for _, op := range ops {
					names = append(names, string(op))
				}

				infos = append(infos, resourceInfo{
					Name:       schema.Name(),
					Service:    schema.Service(),
					Path:       schema.BasePath(),
					Operations: names,
				})
			}

			format := outputFormat()
			if format != constants.FormatTable {
				return encode(cmd.OutOrStdout(), format, infos)
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("Name", "Service", "Path", "Operations")

			for _, info := range infos {
				_ = table.Append(info.Name, info.Service, info.Path, strings.Join(info.Operations, ", "))
			}

			err := table.Render()
			if err != nil {
				return fmt.Errorf("failed to render table: %w", err)
			}

			return nil
		},
	}
}

// NewResourceCommand creates the command group of one resource. Only the
// operations the schema supports get a subcommand.
func NewResourceCommand(schema *resource.Schema, sessions SessionFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   schema.Name(),
		Short: fmt.Sprintf("Manage %s resources", schema.Name()),
		Long:  fmt.Sprintf("Operate on %s (%s service, %s)", schema.Name(), schema.Service(), schema.BasePath()),
	}

	r := &resourceCommand{schema: schema, sessions: sessions}

	if schema.Supports(resource.OpList) {
		cmd.AddCommand(r.listCommand())
	}

	if schema.Supports(resource.OpFetch) {
		cmd.AddCommand(r.getCommand())
	}

	if schema.Supports(resource.OpCreate) {
		cmd.AddCommand(r.createCommand())
	}

	if schema.Supports(resource.OpCommit) {
		cmd.AddCommand(r.updateCommand())
	}

	if schema.Supports(resource.OpDelete) {
		cmd.AddCommand(r.deleteCommand())
	}

	return cmd
}

type resourceCommand struct {
	schema   *resource.Schema
	sessions SessionFactory
}

// run opens a session and hands it to fn.
func (r *resourceCommand) run(ctx context.Context, fn func(*resource.Session) error) error {
	session, release, err := r.sessions(ctx)
	if err != nil {
		return err
	}

	if release != nil {
		defer release()
	}

	return fn(session)
}

func (r *resourceCommand) idArgs() cobra.PositionalArgs {
	if r.schema.RequiresID() {
		return cobra.ExactArgs(1)
	}

	return cobra.NoArgs
}

func (r *resourceCommand) idUse(verb string) string {
	if r.schema.RequiresID() {
		return verb + " ID"
	}

	return verb
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}

	return args[0]
}

func pathOptions(pairs []string) ([]resource.CallOption, error) {
	params, err := parseKeyValues(pairs)
	if err != nil {
		return nil, err
	}

	if len(params) == 0 {
		return nil, nil
	}

	return []resource.CallOption{resource.PathParams(params)}, nil
}

func (r *resourceCommand) listCommand() *cobra.Command {
	var (
		filters  []string
		paths    []string
		pageSize int
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %s resources", r.schema.Name()),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseKeyValues(filters)
			if err != nil {
				return err
			}

			query := make(map[string]any, len(parsed))
			for k, v := range parsed {
				query[k] = v
			}

			opts, err := pathOptions(paths)
			if err != nil {
				return err
			}

			if pageSize > 0 {
				opts = append(opts, resource.PageSize(pageSize))
			}

			return r.run(cmd.Context(), func(session *resource.Session) error {
				pager := session.List(cmd.Context(), r.schema, query, opts...)

				var entities []*resource.Entity

				for entity, err := range pager.All() {
					if err != nil {
						return fmt.Errorf("failed to list %s: %w", r.schema.Name(), err)
					}

					entities = append(entities, entity)

					if limit > 0 && len(entities) >= limit {
						break
					}
				}

				return renderEntities(cmd.OutOrStdout(), r.schema, entities)
			})
		},
	}

	cmd.Flags().StringArrayVar(&filters, "filter", nil, "filter as key=value (repeatable)")
	cmd.Flags().StringArrayVar(&paths, "path", nil, "path parameter as key=value (repeatable)")
	cmd.Flags().IntVar(&pageSize, "page-size", constants.DefaultPageSize, "items requested per page")
	cmd.Flags().IntVar(&limit, "max-items", 0, "stop after this many items (0 for all)")

	return cmd
}

func (r *resourceCommand) getCommand() *cobra.Command {
	var paths []string

	cmd := &cobra.Command{
		Use:   r.idUse("get"),
		Short: fmt.Sprintf("Show a %s", r.schema.Name()),
		Args:  r.idArgs(),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := pathOptions(paths)
			if err != nil {
				return err
			}

			return r.run(cmd.Context(), func(session *resource.Session) error {
				entity, err := session.Get(cmd.Context(), r.schema, firstArg(args), opts...)
				if err != nil {
					return fmt.Errorf("failed to get %s: %w", r.schema.Name(), err)
				}

				return renderEntity(cmd.OutOrStdout(), entity)
			})
		},
	}

	cmd.Flags().StringArrayVar(&paths, "path", nil, "path parameter as key=value (repeatable)")

	return cmd
}

func (r *resourceCommand) createCommand() *cobra.Command {
	var (
		sets  []string
		paths []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: fmt.Sprintf("Create a %s", r.schema.Name()),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseKeyValues(sets)
			if err != nil {
				return err
			}

			attrs := make(map[string]any, len(values))
			for k, v := range values {
				attrs[k] = parseValue(v)
			}

			opts, err := pathOptions(paths)
			if err != nil {
				return err
			}

			entity, err := resource.New(r.schema, attrs)
			if err != nil {
				return err
			}

			return r.run(cmd.Context(), func(session *resource.Session) error {
				err := session.Create(cmd.Context(), entity, opts...)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", r.schema.Name(), err)
				}

				return renderEntity(cmd.OutOrStdout(), entity)
			})
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "attribute as key=value (repeatable, JSON for lists and maps)")
	cmd.Flags().StringArrayVar(&paths, "path", nil, "path parameter as key=value (repeatable)")

	return cmd
}

func (r *resourceCommand) updateCommand() *cobra.Command {
	var (
		sets   []string
		unsets []string
		paths  []string
	)

	cmd := &cobra.Command{
		Use:   r.idUse("update"),
		Short: fmt.Sprintf("Update a %s", r.schema.Name()),
		Args:  r.idArgs(),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(sets) == 0 && len(unsets) == 0 {
				return constants.ErrNothingToUpdate
			}

			values, err := parseKeyValues(sets)
			if err != nil {
				return err
			}

			opts, err := pathOptions(paths)
			if err != nil {
				return err
			}

			entity, err := r.reference(firstArg(args))
			if err != nil {
				return err
			}

			for name, value := range values {
				err = entity.Set(name, parseValue(value))
				if err != nil {
					return err
				}
			}

			for _, name := range unsets {
				err = entity.Unset(name)
				if err != nil {
					return err
				}
			}

			return r.run(cmd.Context(), func(session *resource.Session) error {
				err := session.Commit(cmd.Context(), entity, opts...)
				if err != nil {
					return fmt.Errorf("failed to update %s: %w", r.schema.Name(), err)
				}

				return renderEntity(cmd.OutOrStdout(), entity)
			})
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "attribute as key=value (repeatable, JSON for lists and maps)")
	cmd.Flags().StringArrayVar(&unsets, "unset", nil, "attribute to clear (repeatable)")
	cmd.Flags().StringArrayVar(&paths, "path", nil, "path parameter as key=value (repeatable)")

	return cmd
}

func (r *resourceCommand) deleteCommand() *cobra.Command {
	var paths []string

	cmd := &cobra.Command{
		Use:   r.idUse("delete"),
		Short: fmt.Sprintf("Delete a %s", r.schema.Name()),
		Args:  r.idArgs(),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := pathOptions(paths)
			if err != nil {
				return err
			}

			entity, err := r.reference(firstArg(args))
			if err != nil {
				return err
			}

			return r.run(cmd.Context(), func(session *resource.Session) error {
				err := session.Delete(cmd.Context(), entity, opts...)
				if err != nil {
					return fmt.Errorf("failed to delete %s: %w", r.schema.Name(), err)
				}

				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %s\n", r.schema.Name(), entity.IDString())

				return err
			})
		},
	}

	cmd.Flags().StringArrayVar(&paths, "path", nil, "path parameter as key=value (repeatable)")

	return cmd
}

// reference builds an entity holding only id, or an empty singleton.
func (r *resourceCommand) reference(id string) (*resource.Entity, error) {
	if !r.schema.RequiresID() {
		return resource.New(r.schema, nil)
	}

	identity, ok := r.schema.Identity()
	if !ok {
		return nil, fmt.Errorf("%s: %w", r.schema.Name(), constants.ErrNoIdentity)
	}

	return resource.New(r.schema, map[string]any{identity.Name: id})
}
