package dispatch

import (
	"strings"
)

// Verb identifies a parsed command.
type Verb string

const (
	VerbGet       Verb = "get"
	VerbInfo      Verb = "info"
	VerbFavAdd    Verb = "fav_add"
	VerbFavRemove Verb = "fav_remove"
	VerbFavList   Verb = "fav_list"
	VerbFavRandom Verb = "fav_random"
	VerbHelp      Verb = "help"
	VerbUnknown   Verb = "unknown"
)

// Command is one parsed line of command text.
type Command struct {
	Verb Verb   `json:"verb"`
	Arg  string `json:"arg,omitempty"`
	Raw  string `json:"raw"`
}

var verbAliases = map[string]Verb{
	"jmd":      VerbGet,
	"jmdown":   VerbGet,
	"get":      VerbGet,
	"download": VerbGet,
	"info":     VerbInfo,
	"lookup":   VerbInfo,
	"help":     VerbHelp,
}

var favAliases = map[string]Verb{
	"add":    VerbFavAdd,
	"remove": VerbFavRemove,
	"rm":     VerbFavRemove,
	"del":    VerbFavRemove,
	"list":   VerbFavList,
	"ls":     VerbFavList,
	"random": VerbFavRandom,
}

// Usage describes the accepted grammar.
const Usage = `Commands:
  jmd <id>          download a work and assemble it into a PDF (aliases: jmdown, get)
  info <id>         show title, tags and cover of a work (alias: lookup)
  fav add <id>      add a work to favorites
  fav remove <id>   remove a work from favorites (aliases: rm, del)
  fav list          list favorites (alias: ls)
  fav random        pick a random favorite
  help              show this message`

// Parse splits command text into a Command. Unrecognised input yields
// VerbUnknown; identifier validation is left to the component that runs the
// command so every front-end reports it the same way.
func Parse(text string) Command {
	raw := strings.TrimSpace(text)
	cmd := Command{Verb: VerbUnknown, Raw: raw}

	fields := strings.Fields(strings.TrimPrefix(raw, "/"))
	if len(fields) == 0 {
		return cmd
	}

	head := strings.ToLower(fields[0])
	rest := fields[1:]
	if head == "fav" || head == "favorite" || head == "favorites" {
		if len(rest) == 0 {
			return cmd
		}
		verb, ok := favAliases[strings.ToLower(rest[0])]
		if !ok {
			return cmd
		}
		cmd.Verb = verb
		rest = rest[1:]
	} else {
		verb, ok := verbAliases[head]
		if !ok {
			return cmd
		}
		cmd.Verb = verb
	}

	switch cmd.Verb {
	case VerbGet, VerbInfo, VerbFavAdd, VerbFavRemove:
		cmd.Arg = strings.Join(rest, " ")
	}
	return cmd
}
