package rql

import (
	"strconv"
	"strings"

	"github.com/brainz-lab/recall/internal/model"
)

// CommandKind tags a pipeline command.
type CommandKind int

const (
	// CommandUnknown is kept in the pipeline but never acted on.
	CommandUnknown CommandKind = iota
	CommandStats
	CommandFirst
	CommandLast
)

func (k CommandKind) String() string {
	switch k {
	case CommandStats:
		return "stats"
	case CommandFirst:
		return "first"
	case CommandLast:
		return "last"
	}
	return "unknown"
}

// Command is one stage after a pipe.
type Command struct {
	Kind CommandKind
	Name string
	Args []string
}

func newCommand(fields []string) Command {
	cmd := Command{Name: fields[0], Args: append([]string(nil), fields[1:]...)}
	switch cmd.Name {
	case "stats":
		cmd.Kind = CommandStats
	case "first":
		cmd.Kind = CommandFirst
	case "last":
		cmd.Kind = CommandLast
	}
	return cmd
}

// Dimension is the grouping requested by stats.
type Dimension string

const (
	DimensionNone        Dimension = ""
	DimensionLevel       Dimension = "level"
	DimensionCommit      Dimension = "commit"
	DimensionEnvironment Dimension = "environment"
	DimensionHour        Dimension = "hour"
	DimensionDay         Dimension = "day"
)

var dimensions = map[string]Dimension{
	"level":       DimensionLevel,
	"commit":      DimensionCommit,
	"environment": DimensionEnvironment,
	"env":         DimensionEnvironment,
	"hour":        DimensionHour,
	"day":         DimensionDay,
}

// Dimension returns the by: dimension of a stats command. Unrecognised or
// missing dimensions yield DimensionNone.
func (c Command) Dimension() Dimension {
	for _, arg := range c.Args {
		if v, ok := strings.CutPrefix(arg, "by:"); ok {
			return dimensions[v]
		}
	}
	return DimensionNone
}

// Count returns the first argument as a positive integer, or the default
// limit when it is absent or not positive.
func (c Command) Count() int {
	if len(c.Args) > 0 {
		if n, err := strconv.Atoi(c.Args[0]); err == nil && n > 0 {
			return n
		}
	}
	return model.DefaultLimit
}

// Pipeline is the ordered list of commands of a query.
type Pipeline []Command

// Find returns the first command of the given kind.
func (p Pipeline) Find(kind CommandKind) (Command, bool) {
	for _, c := range p {
		if c.Kind == kind {
			return c, true
		}
	}
	return Command{}, false
}

// Aggregating reports whether a stats command is present.
func (p Pipeline) Aggregating() bool {
	_, ok := p.Find(CommandStats)
	return ok
}

// Limit returns the count of the earliest first or last command.
func (p Pipeline) Limit() (int, bool) {
	for _, c := range p {
		if c.Kind == CommandFirst || c.Kind == CommandLast {
			return c.Count(), true
		}
	}
	return 0, false
}

// Direction is ascending when a first command is present, else descending.
func (p Pipeline) Direction() Direction {
	if _, ok := p.Find(CommandFirst); ok {
		return Ascending
	}
	return Descending
}
