package shell

import "strings"

// CommandKind identifies a shell command. Every input line maps to exactly
// one kind.
type CommandKind int

const (
	CommandUnknown CommandKind = iota
	CommandEmpty
	CommandCd
	CommandLs
	CommandPwd
	CommandUpdate
	CommandCat
	CommandFind
	CommandHelp
	CommandExit
)

// Command is a parsed input line.
type Command struct {
	Kind CommandKind
	Name string
	Arg  string
	Line string
}

type commandInfo struct {
	kind    CommandKind
	name    string
	aliases []string
	help    string
	// path marks commands whose argument is completed as a tree path.
	path bool
}

var commands = []commandInfo{
	{kind: CommandCat, name: "cat", help: "Print content", path: true},
	{kind: CommandCd, name: "cd", help: "change location in tree", path: true},
	{kind: CommandExit, name: "exit", aliases: []string{"x", "q"}, help: "exit the application. Shorthand: x q Ctrl-D."},
	{kind: CommandFind, name: "find", help: "Find lists all elements recursively"},
	{kind: CommandHelp, name: "help", aliases: []string{"?"}, help: "List available commands with \"help\" or detailed help with \"help cmd\"."},
	{kind: CommandLs, name: "ls", help: "list subelements of current path"},
	{kind: CommandPwd, name: "pwd", help: "show current path"},
	{kind: CommandUpdate, name: "update", help: "update the data from the server"},
}

func lookupCommand(name string) (commandInfo, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
		for _, a := range c.aliases {
			if a == name {
				return c, true
			}
		}
	}
	return commandInfo{}, false
}

// commandNames lists primary names in help order.
func commandNames() []string {
	names := make([]string, len(commands))
	for i, c := range commands {
		names[i] = c.name
	}
	return names
}

// Parse splits line into a command and its argument. "?topic" is read as
// "help topic".
func Parse(line string) Command {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Command{Kind: CommandEmpty, Line: line}
	}
	if strings.HasPrefix(trimmed, "?") {
		trimmed = "help " + trimmed[1:]
	}
	name, arg, _ := strings.Cut(trimmed, " ")
	arg = strings.TrimSpace(arg)
	info, ok := lookupCommand(name)
	if !ok {
		return Command{Kind: CommandUnknown, Name: name, Arg: arg, Line: trimmed}
	}
	return Command{Kind: info.kind, Name: info.name, Arg: arg, Line: trimmed}
}
