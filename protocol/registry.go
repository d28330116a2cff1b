package protocol

import (
	"fmt"
	"sort"
	"strings"
)

var constructors = map[string]func(Handler) Implementation{
	"length-prefix": func(h Handler) Implementation { return LengthPrefix(h) },
	"stx-etx":       func(h Handler) Implementation { return STXETX(h) },
	"mllp":          func(h Handler) Implementation { return MLLP(h) },
	"varint":        func(h Handler) Implementation { return VarintDelimited(h) },
	"websocket":     func(h Handler) Implementation { return WebSocket(h) },
	"raw":           func(h Handler) Implementation { return Raw(h) },
}

// ByName builds a strategy with default settings, wrapped in Logger.
func ByName(name string, handler Handler) (Implementation, error) {
	constructor, ok := constructors[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown protocol %q, expected one of %s", name, strings.Join(Names(), ", "))
	}
	return Logger(constructor(handler)), nil
}

func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
