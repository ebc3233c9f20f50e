package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var ErrUnknownCommand = errors.New("unknown command")

// ArgError: команда известна, аргументы нет.
type ArgError struct {
	Command string
	Reason  string
	Usage   string
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("/%s: %s", e.Command, e.Reason)
}

const (
	usageLookback  = "/lookback <hours>"
	usageInterval  = "/interval <seconds>"
	usageHeartbeat = "/heartbeat <minutes>"
	usageThreshold = "/threshold entry|exit|invalid <pct>"
)

// Normalize: "/Lookback@my_bot" -> "lookback".
func Normalize(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}

// Parse разбирает имя и аргументы в Command. Диапазоны не проверяет, это делает ParamStore.
func Parse(name string, args []string) (Command, error) {
	n := Normalize(name)
	switch n {
	case "settings":
		return Settings{}, nil
	case "status":
		return Status{}, nil
	case "help", "start":
		return Help{}, nil
	case "lookback":
		v, err := wholeArg(n, args, usageLookback, "h")
		return Lookback{Hours: v}, err
	case "interval":
		v, err := wholeArg(n, args, usageInterval, "s")
		return Interval{Seconds: v}, err
	case "heartbeat":
		v, err := wholeArg(n, args, usageHeartbeat, "m")
		return Heartbeat{Minutes: v}, err
	case "threshold":
		return parseThreshold(args)
	default:
		return nil, errors.Wrapf(ErrUnknownCommand, "/%s", n)
	}
}

func parseThreshold(args []string) (Command, error) {
	if len(args) != 2 {
		return nil, &ArgError{Command: "threshold", Reason: "expects a kind and a value", Usage: usageThreshold}
	}

	var kind ThresholdKind
	switch strings.ToLower(args[0]) {
	case "entry":
		kind = ThresholdEntry
	case "exit":
		kind = ThresholdExit
	case "invalid", "invalidation":
		kind = ThresholdInvalid
	default:
		return nil, &ArgError{Command: "threshold", Reason: fmt.Sprintf("unknown threshold %q", args[0]), Usage: usageThreshold}
	}

	v, err := parseNumber(args[1])
	if err != nil {
		return nil, &ArgError{Command: "threshold", Reason: fmt.Sprintf("%q is not a number", args[1]), Usage: usageThreshold}
	}
	return Threshold{Kind: kind, Value: v}, nil
}

func wholeArg(cmd string, args []string, usage, unit string) (int, error) {
	if len(args) != 1 {
		return 0, &ArgError{Command: cmd, Reason: "expects exactly one value", Usage: usage}
	}
	raw := strings.TrimSuffix(strings.ToLower(args[0]), unit)
	v, err := parseNumber(raw)
	if err != nil {
		return 0, &ArgError{Command: cmd, Reason: fmt.Sprintf("%q is not a number", args[0]), Usage: usage}
	}
	if v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
		return 0, &ArgError{Command: cmd, Reason: "expects a whole number", Usage: usage}
	}
	return int(v), nil
}

// parseNumber принимает "1.5", "1,5" и "1.5%".
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("not finite")
	}
	return v, nil
}
