package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/samber/lo"
)

// CompletionCmd generates shell completions
type CompletionCmd struct {
	Shell string `arg:"" enum:"bash,zsh,fish" help:"Shell type (bash, zsh, fish)"`
}

// pathFlags complete to file names rather than fixed words
var pathFlags = []string{"-w", "--workspace", "--exe", "--log-dir"}

type completionNode struct {
	Subcommands []string
	Flags       []string
}

// completionIndex is the kong model flattened by command path ("sessions__rm")
type completionIndex struct {
	Nodes      map[string]completionNode
	EnumByFlag map[string][]string
}

// Run executes the completion command. The kong context keeps the generated
// script in sync with the command model.
func (c *CompletionCmd) Run(globals *Globals, ctx *kong.Context) error {
	var model *kong.Node
	if ctx != nil && ctx.Model != nil {
		model = ctx.Model.Node
	}
	idx := buildCompletionIndex(model)

	var script string
	switch c.Shell {
	case "bash":
		script = bashCompletion(idx)
	case "zsh":
		script = zshCompletion(idx)
	case "fish":
		script = fishCompletion(idx)
	default:
		return fmt.Errorf("unsupported shell: %s", c.Shell)
	}
	_, err := fmt.Fprint(globals.Stdout, script)
	return err
}

func buildCompletionIndex(model *kong.Node) completionIndex {
	idx := completionIndex{Nodes: map[string]completionNode{}, EnumByFlag: map[string][]string{}}
	if model == nil {
		return idx
	}

	var walk func(n *kong.Node, path []string)
	walk = func(n *kong.Node, path []string) {
		children := lo.Filter(n.Children, func(child *kong.Node, _ int) bool {
			return child != nil && child.Type == kong.CommandNode && !child.Hidden
		})

		var subs []string
		for _, child := range children {
			subs = append(subs, child.Name)
			subs = append(subs, child.Aliases...)
		}

		var flags []string
		for _, group := range n.AllFlags(true) {
			for _, f := range group {
				if f == nil {
					continue
				}
				tokens := flagCompletionTokens(f)
				flags = append(flags, tokens...)
				if values := splitEnum(f.Enum); len(values) > 0 {
					for _, t := range tokens {
						if _, ok := idx.EnumByFlag[t]; !ok {
							idx.EnumByFlag[t] = values
						}
					}
				}
			}
		}

		idx.Nodes[strings.Join(path, "__")] = completionNode{
			Subcommands: uniqueSorted(subs),
			Flags:       uniqueSorted(flags),
		}
		for _, child := range children {
			walk(child, append(append([]string(nil), path...), child.Name))
		}
	}
	walk(model, nil)
	return idx
}

func splitEnum(raw string) []string {
	values := lo.Map(strings.Split(raw, ","), func(v string, _ int) string { return strings.TrimSpace(v) })
	return lo.Compact(values)
}

func flagCompletionTokens(f *kong.Flag) []string {
	tokens := []string{"--" + f.Name}
	if f.Short != 0 {
		tokens = append(tokens, "-"+string(f.Short))
	}
	for _, a := range f.Aliases {
		tokens = append(tokens, "--"+a)
	}
	return tokens
}

func uniqueSorted(in []string) []string {
	out := lo.Uniq(lo.Compact(lo.Map(in, func(s string, _ int) string { return strings.TrimSpace(s) })))
	sort.Strings(out)
	return out
}

func (idx completionIndex) paths() []string {
	paths := lo.Keys(idx.Nodes)
	sort.Strings(paths)
	return paths
}

func (idx completionIndex) enumFlags() []string {
	tokens := lo.Keys(idx.EnumByFlag)
	sort.Strings(tokens)
	return tokens
}

// cmdpathLoop walks the words typed so far and leaves the deepest known
// command path in $cmdpath. start is the index of the first word.
func cmdpathLoop(idx completionIndex, start, indent string) string {
	in := func(n int) string { return strings.Repeat(indent, n) }
	var sb strings.Builder
	sb.WriteString(in(1) + `local cmdpath="" candidate="" w i` + "\n")
	sb.WriteString(in(1) + "for ((i=" + start + "; i < cword; i++)); do\n")
	sb.WriteString(in(2) + `w="${words[i]}"` + "\n")
	sb.WriteString(in(2) + `[[ -z "$w" || "$w" == -* ]] && continue` + "\n")
	sb.WriteString(in(2) + `candidate="${candidate:+${candidate}__}$w"` + "\n")
	sb.WriteString(in(2) + `case "$candidate" in` + "\n")
	for _, p := range idx.paths() {
		if p != "" {
			sb.WriteString(in(3) + p + `) cmdpath="$candidate" ;;` + "\n")
		}
	}
	sb.WriteString(in(3) + "*) break ;;\n")
	sb.WriteString(in(2) + "esac\n")
	sb.WriteString(in(1) + "done\n")
	return sb.String()
}

func bashCompletion(idx completionIndex) string {
	var sb strings.Builder
	sb.WriteString(`# dbgl bash completion script
# Add to ~/.bashrc:
#   eval "$(dbgl completion bash)"

_dbgl_completions() {
    local cur prev words cword
    _init_completion || return

`)
	sb.WriteString(cmdpathLoop(idx, "1", "    "))
	sb.WriteString("\n    case \"$prev\" in\n")
	sb.WriteString("        " + strings.Join(pathFlags, "|") + ")\n")
	sb.WriteString("            COMPREPLY=($(compgen -f -- \"$cur\"))\n            return\n            ;;\n")
	for _, token := range idx.enumFlags() {
		fmt.Fprintf(&sb, "        %s)\n            COMPREPLY=($(compgen -W \"%s\" -- \"$cur\"))\n            return\n            ;;\n",
			token, strings.Join(idx.EnumByFlag[token], " "))
	}
	sb.WriteString("    esac\n\n    local subcommands=\"\" flags=\"\"\n    case \"$cmdpath\" in\n")
	for _, p := range idx.paths() {
		node := idx.Nodes[p]
		fmt.Fprintf(&sb, "        \"%s\")\n            subcommands=\"%s\"\n            flags=\"%s\"\n            ;;\n",
			p, strings.Join(node.Subcommands, " "), strings.Join(node.Flags, " "))
	}
	sb.WriteString(`    esac

    if [[ "$cur" == -* ]]; then
        COMPREPLY=($(compgen -W "$flags" -- "$cur"))
    elif [[ -n "$subcommands" ]]; then
        COMPREPLY=($(compgen -W "$subcommands" -- "$cur"))
    fi
}

complete -F _dbgl_completions dbgl
`)
	return sb.String()
}

func zshCompletion(idx completionIndex) string {
	var sb strings.Builder
	sb.WriteString(`#compdef dbgl
# dbgl zsh completion script
# Add to ~/.zshrc:
#   eval "$(dbgl completion zsh)"

_dbgl() {
  local cur="${words[CURRENT]}" prev="${words[CURRENT-1]}" cword=$CURRENT
`)
	sb.WriteString(cmdpathLoop(idx, "2", "  "))
	sb.WriteString("\n  case \"$prev\" in\n")
	sb.WriteString("    " + strings.Join(pathFlags, "|") + ")\n      _files\n      return\n      ;;\n")
	for _, token := range idx.enumFlags() {
		fmt.Fprintf(&sb, "    %s)\n      compadd -- %s\n      return\n      ;;\n", token, strings.Join(idx.EnumByFlag[token], " "))
	}
	sb.WriteString("  esac\n\n  local -a subcommands flags\n  case \"$cmdpath\" in\n")
	for _, p := range idx.paths() {
		node := idx.Nodes[p]
		fmt.Fprintf(&sb, "    \"%s\")\n      subcommands=(%s)\n      flags=(%s)\n      ;;\n",
			p, strings.Join(node.Subcommands, " "), strings.Join(node.Flags, " "))
	}
	sb.WriteString(`  esac

  if [[ "$cur" == -* ]]; then
    compadd -- ${flags[@]}
  elif (( ${#subcommands[@]} > 0 )); then
    compadd -- ${subcommands[@]}
  fi
}

compdef _dbgl dbgl
`)
	return sb.String()
}

func fishCompletion(idx completionIndex) string {
	var sb strings.Builder
	sb.WriteString(`# dbgl fish completion script
# Add to ~/.config/fish/completions/dbgl.fish

complete -c dbgl -f
`)
	root := idx.Nodes[""]
	for _, cmd := range root.Subcommands {
		fmt.Fprintf(&sb, "complete -c dbgl -n \"__fish_use_subcommand\" -a \"%s\"\n", cmd)
		for _, sub := range idx.Nodes[cmd].Subcommands {
			fmt.Fprintf(&sb, "complete -c dbgl -n \"__fish_seen_subcommand_from %s\" -a \"%s\"\n", cmd, sub)
		}
	}
	for _, flag := range root.Flags {
		long, ok := strings.CutPrefix(flag, "--")
		if !ok {
			continue
		}
		if enum := idx.EnumByFlag[flag]; len(enum) > 0 {
			fmt.Fprintf(&sb, "complete -c dbgl -l %s -xa \"%s\"\n", long, strings.Join(enum, " "))
			continue
		}
		fmt.Fprintf(&sb, "complete -c dbgl -l %s\n", long)
	}
	for _, flag := range pathFlags {
		if long, ok := strings.CutPrefix(flag, "--"); ok {
			fmt.Fprintf(&sb, "complete -c dbgl -l %s -rF\n", long)
		}
	}
	return sb.String()
}
