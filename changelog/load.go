package changelog

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/stokaro/changekit/change"
	"github.com/stokaro/changekit/change/custom"
	"github.com/stokaro/changekit/core/database"
)

// LoadOptions configures Load.
type LoadOptions struct {
	// Loader resolves customChange classes.
	Loader custom.Loader
	Logger *slog.Logger
}

// DefaultLoadOptions resolves custom changes through custom.DefaultRegistry.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		Loader: custom.DefaultRegistry,
		Logger: slog.Default(),
	}
}

// Load reads the changelog at filePath from fsys, following includes.
//
// The format is chosen by extension: .xml for XML and .yaml, .yml or .json for
// YAML. Changes that read resources, such as sqlFile, resolve them against fsys.
func Load(fsys fs.FS, filePath string, opts LoadOptions) (*ChangeLog, error) {
	if opts.Loader == nil {
		opts.Loader = custom.DefaultRegistry
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	b := &builder{fsys: fsys, opts: opts, visiting: map[string]bool{}}
	cl := &ChangeLog{PhysicalPath: filePath}
	if err := b.include(cl, filePath, "", true); err != nil {
		return nil, err
	}
	return cl, nil
}

func parseFile(fsys fs.FS, filePath string) (*node, error) {
	data, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read changelog: %w", err)
	}

	var root *node
	switch strings.ToLower(path.Ext(filePath)) {
	case ".xml":
		root, err = parseXML(data)
	case ".yaml", ".yml", ".json":
		root, err = parseYAML(data)
	default:
		return nil, fmt.Errorf("unsupported changelog format %q", path.Ext(filePath))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	if root.Name != "databaseChangeLog" {
		return nil, fmt.Errorf("%s: expected databaseChangeLog but found %s", filePath, root.Name)
	}
	return root, nil
}

type builder struct {
	fsys     fs.FS
	opts     LoadOptions
	visiting map[string]bool
}

// include appends the change sets of filePath to cl. Change sets inherit the
// including changelog's quoting strategy unless the included file declares one.
func (b *builder) include(cl *ChangeLog, filePath string, inherited database.ObjectQuotingStrategy, top bool) error {
	filePath = path.Clean(filePath)
	if b.visiting[filePath] {
		return fmt.Errorf("changelog %s includes itself", filePath)
	}
	b.visiting[filePath] = true
	defer delete(b.visiting, filePath)

	root, err := parseFile(b.fsys, filePath)
	if err != nil {
		return err
	}

	strategy := inherited
	if raw := root.attr("objectQuotingStrategy"); raw != "" {
		if strategy, err = database.ParseObjectQuotingStrategy(raw); err != nil {
			return fmt.Errorf("%s: %w", filePath, err)
		}
	}
	if top {
		cl.ObjectQuotingStrategy = strategy
	}

	for _, n := range root.Children {
		switch n.Name {
		case "preConditions":
			p, err := b.preconditions(n)
			if err != nil {
				return fmt.Errorf("%s: %w", filePath, err)
			}
			if top {
				cl.Preconditions = p
			}
		case "changeSet":
			cs, err := b.changeSet(n, filePath, strategy)
			if err != nil {
				return fmt.Errorf("%s: %w", filePath, err)
			}
			cl.ChangeSets = append(cl.ChangeSets, cs)
		case "include":
			target := n.attr("file")
			if target == "" {
				return fmt.Errorf("%s: include requires a file", filePath)
			}
			relative, err := n.boolAttr("relativeToChangelogFile")
			if err != nil {
				return fmt.Errorf("%s: %w", filePath, err)
			}
			if relative != nil && *relative {
				target = path.Join(path.Dir(filePath), target)
			}
			b.opts.Logger.Debug("Including changelog", "file", target, "from", filePath)
			if err := b.include(cl, target, strategy, false); err != nil {
				return err
			}
		case "property", "comment":
		default:
			return fmt.Errorf("%s: unexpected element %s", filePath, n.Name)
		}
	}
	return nil
}

func (b *builder) changeSet(n *node, filePath string, strategy database.ObjectQuotingStrategy) (*ChangeSet, error) {
	cs := &ChangeSet{
		ID:                    n.attr("id"),
		Author:                n.attr("author"),
		FilePath:              filePath,
		ObjectQuotingStrategy: strategy,
		Dbms:                  n.attr("dbms"),
		Comments:              strings.TrimSpace(n.Attrs["comment"]),
	}
	if raw := n.attr("objectQuotingStrategy"); raw != "" {
		s, err := database.ParseObjectQuotingStrategy(raw)
		if err != nil {
			return nil, fmt.Errorf("change set %s: %w", cs.ID, err)
		}
		cs.ObjectQuotingStrategy = s
	}
	for name, target := range map[string]*bool{"runOnChange": &cs.RunOnChange, "runAlways": &cs.RunAlways} {
		v, err := n.boolAttr(name)
		if err != nil {
			return nil, fmt.Errorf("change set %s: %w", cs.ID, err)
		}
		if v != nil {
			*target = *v
		}
	}
	if raw, ok := n.Attrs["rollback"]; ok {
		cs.HasRollback = true
		if strings.TrimSpace(raw) != "" {
			c, err := b.sqlText(raw, filePath)
			if err != nil {
				return nil, fmt.Errorf("change set %s: %w", cs.ID, err)
			}
			cs.Rollback = append(cs.Rollback, c)
		}
	}

	for _, child := range n.elements("changes") {
		switch child.Name {
		case "comment":
			cs.Comments = strings.TrimSpace(child.Text)
		case "preConditions":
			p, err := b.preconditions(child)
			if err != nil {
				return nil, fmt.Errorf("change set %s: %w", cs.ID, err)
			}
			cs.Preconditions = p
		case "rollback":
			cs.HasRollback = true
			changes, err := b.rollback(child, filePath)
			if err != nil {
				return nil, fmt.Errorf("change set %s rollback: %w", cs.ID, err)
			}
			cs.Rollback = append(cs.Rollback, changes...)
		default:
			c, err := b.change(child, filePath)
			if err != nil {
				return nil, fmt.Errorf("change set %s: %w", cs.ID, err)
			}
			cs.Changes = append(cs.Changes, c)
		}
	}
	return cs, nil
}

// rollback builds explicit rollback changes. A body without elements is raw SQL;
// an empty element declares that nothing needs to be undone.
func (b *builder) rollback(n *node, filePath string) ([]change.Change, error) {
	children := n.elements("changes")
	if len(children) == 0 {
		sql := n.text("sql")
		if strings.TrimSpace(sql) == "" {
			return nil, nil
		}
		c, err := b.sqlText(sql, filePath)
		if err != nil {
			return nil, err
		}
		return []change.Change{c}, nil
	}
	var out []change.Change
	for _, child := range children {
		c, err := b.change(child, filePath)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (b *builder) sqlText(sql, filePath string) (change.Change, error) {
	c := change.NewRawSQLChange(sql)
	return c, b.finish(c, filePath)
}

func (b *builder) change(n *node, filePath string) (change.Change, error) {
	var c change.Change
	var err error
	switch n.Name {
	case "sql":
		c, err = b.sql(n)
	case "sqlFile":
		c, err = b.sqlFile(n)
	case "createTable":
		c, err = b.createTable(n)
	case "dropTable":
		dt := &change.DropTableChange{}
		err = decodeAttrs(n.Attrs, dt, "change")
		c = dt
	case "customChange":
		c, err = b.customChange(n)
	default:
		return nil, fmt.Errorf("unknown change type %s", n.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", n.Name, err)
	}
	if err := b.finish(c, filePath); err != nil {
		return nil, fmt.Errorf("%s: %w", n.Name, err)
	}
	return c, nil
}

// finish hands the change its resources and lets it complete loading.
func (b *builder) finish(c change.Change, filePath string) error {
	c.SetResourceAccessor(b.fsys)
	if f, ok := c.(*change.SQLFileChange); ok {
		f.SetChangeLogPath(filePath)
	}
	if init, ok := c.(change.Initializer); ok {
		return init.FinishInitialization()
	}
	return nil
}

func (b *builder) sql(n *node) (change.Change, error) {
	c := change.NewRawSQLChange(n.text("sql"))
	if err := sqlOptions(n, &c.SQLChange); err != nil {
		return nil, err
	}
	c.SetDbms(n.attr("dbms"))
	c.SetComment(strings.TrimSpace(n.Attrs["comment"]))
	for _, child := range n.Children {
		if child.Name == "comment" {
			c.SetComment(strings.TrimSpace(child.Text))
		}
	}
	return c, nil
}

func (b *builder) sqlFile(n *node) (change.Change, error) {
	c := change.NewSQLFileChange(n.attr("path"))
	if err := sqlOptions(n, &c.SQLChange); err != nil {
		return nil, err
	}
	c.SetEncoding(n.attr("encoding"))
	c.SetDbms(n.attr("dbms"))
	relative, err := n.boolAttr("relativeToChangelogFile")
	if err != nil {
		return nil, err
	}
	if relative != nil {
		c.SetRelativeToChangelogFile(*relative)
	}
	return c, nil
}

func sqlOptions(n *node, c *change.SQLChange) error {
	split, err := n.boolAttr("splitStatements")
	if err != nil {
		return err
	}
	strip, err := n.boolAttr("stripComments")
	if err != nil {
		return err
	}
	c.SetSplitStatements(split)
	c.SetStripComments(strip)
	c.SetEndDelimiter(n.Attrs["endDelimiter"])
	return nil
}

func (b *builder) createTable(n *node) (change.Change, error) {
	c := &change.CreateTableChange{}
	if err := decodeAttrs(n.Attrs, c, "change"); err != nil {
		return nil, err
	}
	for _, colNode := range n.elements("columns") {
		if colNode.Name != "column" {
			return nil, fmt.Errorf("unexpected element %s", colNode.Name)
		}
		attrs := make(map[string]string, len(colNode.Attrs))
		for k, v := range colNode.Attrs {
			attrs[k] = v
		}
		for _, child := range colNode.Children {
			if child.Name == "constraints" {
				for k, v := range child.Attrs {
					attrs[k] = v
				}
			}
		}
		var col change.ColumnConfig
		if err := decodeAttrs(attrs, &col, "mapstructure"); err != nil {
			return nil, fmt.Errorf("column %s: %w", attrs["name"], err)
		}
		c.AddColumn(col)
	}
	return c, nil
}

// customChange builds a wrapper. Parameters come from param elements and, in
// YAML, from any attribute other than class.
func (b *builder) customChange(n *node) (change.Change, error) {
	class := n.attr("class")
	if class == "" {
		return nil, fmt.Errorf("class is required")
	}
	w, err := custom.NewWrapper(b.opts.Loader).SetClass(class)
	if err != nil {
		return nil, err
	}
	for k, v := range n.Attrs {
		if k != "class" {
			w.SetParam(k, v)
		}
	}
	for _, child := range n.elements("params") {
		if child.Name != "param" {
			continue
		}
		name := child.attr("name")
		if name == "" {
			return nil, fmt.Errorf("param requires a name")
		}
		value, ok := child.Attrs["value"]
		if !ok {
			value = strings.TrimSpace(child.Text)
		}
		w.SetParam(name, value)
	}
	return w, nil
}

func (b *builder) preconditions(n *node) (*Preconditions, error) {
	onFail, err := ParseOnFail(n.attr("onFail"))
	if err != nil {
		return nil, err
	}
	conditions, err := buildConditions(n.Children)
	if err != nil {
		return nil, err
	}
	return &Preconditions{OnFail: onFail, OnFailMessage: n.attr("onFailMessage"), Conditions: conditions}, nil
}

func buildConditions(nodes []*node) ([]Precondition, error) {
	var out []Precondition
	for _, n := range nodes {
		switch n.Name {
		case "expectedQuotingStrategy":
			s, err := database.ParseObjectQuotingStrategy(n.attr("strategy"))
			if err != nil {
				return nil, err
			}
			out = append(out, &ExpectedQuotingStrategy{Strategy: s})
		case "dbms":
			if n.attr("type") == "" {
				return nil, fmt.Errorf("dbms precondition requires a type")
			}
			out = append(out, &DBMS{Type: n.attr("type")})
		case "tableExists":
			if n.attr("tableName") == "" {
				return nil, fmt.Errorf("tableExists precondition requires a tableName")
			}
			out = append(out, &TableExists{SchemaName: n.attr("schemaName"), TableName: n.attr("tableName")})
		case "not":
			nested, err := buildConditions(n.Children)
			if err != nil {
				return nil, err
			}
			out = append(out, &Not{Conditions: nested})
		default:
			return nil, fmt.Errorf("unknown precondition %s", n.Name)
		}
	}
	return out, nil
}

// decodeAttrs decodes string attributes into the fields of out tagged with tag.
// Unknown attributes are ignored.
func decodeAttrs(attrs map[string]string, out any, tag string) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          tag,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(attrs)
}
