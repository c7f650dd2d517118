package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/viper"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/resourcekit/internal/constants"
	"github.com/fivetwenty-io/resourcekit/pkg/resource"
)

// outputFormat returns the configured format. Without one, a terminal gets
// a table and a pipe gets JSON.
func outputFormat() string {
	if format := viper.GetString("output"); format != "" {
		return format
	}

	if term.IsTerminal(int(os.Stdout.Fd())) {
		return constants.FormatTable
	}

	return constants.FormatJSON
}

func encode(w io.Writer, format string, value interface{}) error {
	switch format {
	case constants.FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", strings.Repeat(" ", constants.JSONIndentSize))

		return encoder.Encode(value)
	case constants.FormatYAML:
		encoder := yaml.NewEncoder(w)
		defer func() { _ = encoder.Close() }()

		return encoder.Encode(value)
	default:
		return fmt.Errorf("%w: %s", constants.ErrUnknownOutputFormat, format)
	}
}

// document converts an entity into plain maps for encoding.
func document(e *resource.Entity) map[string]interface{} {
	fields := e.Fields()
	out := make(map[string]interface{}, len(fields)+len(e.Extra()))

	for key, value := range e.Extra() {
		out[key] = value
	}

	for name, value := range fields {
		out[name] = plain(value)
	}

	return out
}

func plain(value interface{}) interface{} {
	switch v := value.(type) {
	case *resource.Entity:
		if v == nil {
			return nil
		}

		return document(v)
	case []interface{}:
		out := make([]interface{}, 0, len(v))
		for _, item := range v {
			out = append(out, plain(item))
		}

		return out
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return v
	}
}

// columns lists the scalar attributes of schema, identity first.
func columns(schema *resource.Schema) []string {
	var names []string

	if identity, ok := schema.Identity(); ok {
		names = append(names, identity.Name)
	}

	for _, attr := range schema.Attributes() {
		if attr.PrimaryID || attr.AlternateID {
			continue
		}

		switch attr.Type.Kind {
		case resource.KindNested, resource.KindList, resource.KindAny:
			continue
		}

		names = append(names, attr.Name)
	}

	return names
}

func cell(value interface{}, ok bool) string {
	if !ok || value == nil {
		return constants.NotAvailable
	}

	var text string

	switch v := value.(type) {
	case time.Time:
		text = v.Format(time.RFC3339)
	default:
		text = fmt.Sprint(v)
	}

	if len(text) > constants.StringTruncationLength {
		text = text[:constants.StringTruncationLength-3] + "..."
	}

	return text
}

func renderEntities(w io.Writer, schema *resource.Schema, entities []*resource.Entity) error {
	format := outputFormat()
	if format != constants.FormatTable {
		docs := make([]map[string]interface{}, 0, len(entities))
		for _, e := range entities {
			docs = append(docs, document(e))
		}

		return encode(w, format, docs)
	}

	if len(entities) == 0 {
		_, err := fmt.Fprintf(w, "No %s found\n", schema.Name())

		return err
	}

	header := columns(schema)

	table := tablewriter.NewWriter(w)
	table.Header(toAny(header)...)

	for _, e := range entities {
		row := make([]interface{}, 0, len(header))

		for _, name := range header {
			value, ok := e.Get(name)
			row = append(row, cell(value, ok))
		}

		_ = table.Append(row...)
	}

	err := table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

func renderEntity(w io.Writer, e *resource.Entity) error {
	format := outputFormat()
	if format != constants.FormatTable {
		return encode(w, format, document(e))
	}

	doc := document(e)

	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}

	sort.Strings(names)

	table := tablewriter.NewWriter(w)
	table.Header("Property", "Value")

	for _, name := range names {
		value := doc[name]

		switch value.(type) {
		case map[string]interface{}, []interface{}:
			data, err := json.Marshal(value)
			if err == nil {
				value = string(data)
			}
		}

		_ = table.Append(name, cell(value, true))
	}

	err := table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

func toAny(values []string) []interface{} {
	out := make([]interface{}, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}

	return out
}

// parseKeyValues splits "k=v" pairs.
func parseKeyValues(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))

	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", constants.KeyValueSplitParts)
		if len(parts) != constants.KeyValueSplitParts || parts[0] == "" {
			return nil, fmt.Errorf("%w: %q", constants.ErrInvalidKeyValue, pair)
		}

		out[parts[0]] = parts[1]
	}

	return out, nil
}

// parseValue decodes JSON arrays and objects; anything else stays a string
// and is coerced by the attribute type.
func parseValue(raw string) interface{} {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		var decoded interface{}
		if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
			return decoded
		}
	}

	return raw
}
