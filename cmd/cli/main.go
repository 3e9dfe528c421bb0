package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nickyhof/SchemaVC"
	"github.com/nickyhof/SchemaVC/core"
	"github.com/nickyhof/SchemaVC/ps"
	"github.com/nickyhof/SchemaVC/vc"
)

const (
	PromptColor  = "\033[36m" // Cyan
	ErrorColor   = "\033[31m" // Red
	SuccessColor = "\033[32m" // Green
	ResetColor   = "\033[0m"
	BoldColor    = "\033[1m"
)

// Version is set at build time via -ldflags
var Version = "dev"

// CLI holds the CLI state
type CLI struct {
	engine      *vc.Engine
	history     []string
	historyFile string
}

func main() {
	baseDir := flag.String("baseDir", "", "Base directory for the schema store")
	opsDB := flag.String("opsDB", "", "DuckDB file for merge operation state")
	sqlFile := flag.String("sqlFile", "", "DDL file to apply (non-interactive)")
	userName := flag.String("name", "SchemaVC", "User name for commits")
	userEmail := flag.String("email", "cli@schemavc.local", "User email for commits")
	flag.Parse()

	printBanner()

	var instance SchemaVC.Instance

	if *baseDir == "" {
		fmt.Printf("%sUsing memory persistence%s\n", SuccessColor, ResetColor)
		persistence, err := ps.NewMemoryPersistence()
		if err != nil {
			fmt.Printf("%sError: %v%s\n", ErrorColor, err, ResetColor)
			return
		}
		instance = *SchemaVC.Open(&persistence)
	} else {
		fmt.Printf("%sUsing file persistence: %s%s\n", SuccessColor, *baseDir, ResetColor)
		var operations ps.OperationStore
		if *opsDB != "" {
			store, err := ps.NewDuckDBOperationStore(*opsDB)
			if err != nil {
				fmt.Printf("%sError: %v%s\n", ErrorColor, err, ResetColor)
				return
			}
			defer store.Close()
			operations = store
		} else {
			operations = ps.NewMemoryOperationStore()
		}
		persistence, err := ps.NewFilePersistence(*baseDir, operations)
		if err != nil {
			fmt.Printf("%sError: %v%s\n", ErrorColor, err, ResetColor)
			return
		}
		instance = *SchemaVC.Open(&persistence)
	}

	engine := instance.Engine(core.Identity{
		Name:  *userName,
		Email: *userEmail,
	})

	cli := &CLI{
		engine:      engine,
		history:     make([]string, 0),
		historyFile: getHistoryPath(),
	}

	cli.loadHistory()

	// Apply DDL file if provided
	if *sqlFile != "" {
		if err := cli.importFile(*sqlFile); err != nil {
			fmt.Printf("%sError importing file: %v%s\n", ErrorColor, err, ResetColor)
			os.Exit(1)
		}
		return
	}

	cli.run()
}

func printBanner() {
	fmt.Println()
	bannerWidth := 39 // inner width of the banner box
	versionLine := fmt.Sprintf("SchemaVC v%s", Version)
	padding := bannerWidth - len(versionLine) - 2 // -2 for "  " margins
	if padding < 0 {
		padding = 0
	}
	leftPad := padding / 2
	rightPad := padding - leftPad

	fmt.Printf("%s%s╔═══════════════════════════════════════╗%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Printf("%s%s║ %*s%s%*s ║%s\n", BoldColor, PromptColor, leftPad, "", versionLine, rightPad, "", ResetColor)
	fmt.Printf("%s%s║   Schema Version Control Engine       ║%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Printf("%s%s╚═══════════════════════════════════════╝%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Println()
	fmt.Println("Type .help for commands, .quit to exit")
	fmt.Println()
}

func (cli *CLI) run() {
	reader := bufio.NewReader(os.Stdin)
	var multiLineBuffer strings.Builder

	for {
		prompt := cli.getPrompt(multiLineBuffer.Len() > 0)
		fmt.Print(prompt)

		input, err := reader.ReadString('\n')
		if err != nil {
			fmt.Printf("\n%sGoodbye!%s\n", SuccessColor, ResetColor)
			return
		}

		input = strings.TrimSuffix(input, "\n")
		input = strings.TrimSuffix(input, "\r")

		if strings.TrimSpace(input) == "" {
			continue
		}

		// Check for special commands (only when not in multi-line mode)
		if multiLineBuffer.Len() == 0 && strings.HasPrefix(input, ".") {
			if cli.handleCommand(input) {
				continue
			}
		}

		// Multi-line support: accumulate until we see a semicolon
		multiLineBuffer.WriteString(input)

		trimmed := strings.TrimSpace(multiLineBuffer.String())
		if !strings.HasSuffix(trimmed, ";") {
			multiLineBuffer.WriteString(" ")
			continue
		}

		sql := strings.TrimSuffix(trimmed, ";")
		multiLineBuffer.Reset()

		if strings.TrimSpace(sql) == "" {
			continue
		}

		cli.addToHistory(sql + ";")

		txn, err := cli.engine.Apply(sql)
		if err != nil {
			fmt.Printf("%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
		} else {
			fmt.Printf("%s✓ Committed %s%s\n", SuccessColor, shortId(txn.Id), ResetColor)
		}
	}
}

func (cli *CLI) getPrompt(multiLine bool) string {
	if multiLine {
		return fmt.Sprintf("%s   ...>%s ", PromptColor, ResetColor)
	}
	return fmt.Sprintf("%sschemavc (%s)>%s ", PromptColor, cli.engine.Branch, ResetColor)
}

func (cli *CLI) handleCommand(input string) bool {
	parts := strings.Fields(strings.TrimSpace(input))
	if len(parts) == 0 {
		return true
	}

	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit", ".q":
		fmt.Printf("%sGoodbye!%s\n", SuccessColor, ResetColor)
		cli.saveHistory()
		os.Exit(0)

	case ".help", ".h", ".?":
		cli.printHelp()

	case ".branches":
		cli.showBranches()

	case ".branch":
		if len(parts) > 1 {
			if err := cli.engine.CreateBranch(parts[1]); err != nil {
				cli.printError(err)
			} else {
				fmt.Printf("%s✓ Created branch: %s%s\n", SuccessColor, parts[1], ResetColor)
			}
		} else {
			cli.printUsage(".branch <name>")
		}

	case ".checkout":
		if len(parts) > 1 {
			if err := cli.engine.Checkout(parts[1]); err != nil {
				cli.printError(err)
			} else {
				fmt.Printf("%s✓ Switched to branch: %s%s\n", SuccessColor, parts[1], ResetColor)
			}
		} else {
			cli.printUsage(".checkout <branch>")
		}

	case ".merge":
		if len(parts) > 1 {
			strategy := ps.StrategyAuto
			if len(parts) > 2 {
				strategy = ps.MergeStrategy(parts[2])
			}
			cli.runMerge(parts[1], strategy)
		} else {
			cli.printUsage(".merge <branch> [strategy]")
		}

	case ".conflicts":
		if len(parts) > 1 {
			cli.showConflicts(parts[1])
		} else {
			cli.printUsage(".conflicts <mergeId>")
		}

	case ".resolve":
		if len(parts) > 3 {
			conflict, err := cli.engine.Resolve(parts[1], parts[2], ps.Resolution(parts[3]), "")
			if err != nil {
				cli.printError(err)
			} else {
				fmt.Printf("%s✓ Resolved %s (%s)%s\n", SuccessColor, conflict.Identity, conflict.Resolution, ResetColor)
			}
		} else {
			cli.printUsage(".resolve <mergeId> <conflictId> <take_source|take_target>")
		}

	case ".finalize":
		if len(parts) > 1 {
			op, err := cli.engine.Finalize(parts[1])
			if err != nil {
				cli.printError(err)
			} else {
				fmt.Printf("%s✓ Merge %s: %s%s\n", SuccessColor, op.Id, op.Status, ResetColor)
			}
		} else {
			cli.printUsage(".finalize <mergeId>")
		}

	case ".abort":
		if len(parts) > 1 {
			if err := cli.engine.AbortMerge(parts[1]); err != nil {
				cli.printError(err)
			} else {
				fmt.Printf("%s✓ Merge aborted%s\n", SuccessColor, ResetColor)
			}
		} else {
			cli.printUsage(".abort <mergeId>")
		}

	case ".objects":
		cli.showObjects()

	case ".show":
		if len(parts) > 2 {
			cli.showDefinition(parts[1], parts[2])
		} else {
			cli.printUsage(".show <kind> <name>")
		}

	case ".log":
		limit := 10
		if len(parts) > 1 {
			if n, err := strconv.Atoi(parts[1]); err == nil {
				limit = n
			}
		}
		cli.showLog(limit)

	case ".diff":
		if len(parts) > 2 {
			cli.showDiff(parts[1], parts[2])
		} else {
			cli.printUsage(".diff <branchA> <branchB>")
		}

	case ".verify":
		if err := cli.engine.Verify(); err != nil {
			cli.printError(err)
		} else {
			fmt.Printf("%s✓ Branch %s verified%s\n", SuccessColor, cli.engine.Branch, ResetColor)
		}

	case ".gc":
		stats, err := cli.engine.GarbageCollect()
		if err != nil {
			cli.printError(err)
		} else {
			fmt.Printf("%s✓ GC: %d reachable, %d unreachable, %d deleted%s\n",
				SuccessColor, stats.Reachable, stats.Unreachable, stats.Deleted, ResetColor)
		}

	case ".export":
		if len(parts) > 1 {
			if err := cli.engine.ExportSchema(parts[1]); err != nil {
				cli.printError(err)
			} else {
				fmt.Printf("%s✓ Exported to %s%s\n", SuccessColor, parts[1], ResetColor)
			}
		} else {
			cli.printUsage(".export <target>")
		}

	case ".import":
		if len(parts) > 1 {
			if err := cli.importFile(parts[1]); err != nil {
				cli.printError(err)
			}
		} else {
			cli.printUsage(".import <file.sql>")
		}

	case ".clear", ".cls":
		fmt.Print("\033[H\033[2J")

	case ".history":
		cli.printHistory()

	case ".version":
		fmt.Printf("SchemaVC version %s\n", Version)

	default:
		fmt.Printf("%s✗ Unknown command: %s (type .help for commands)%s\n", ErrorColor, parts[0], ResetColor)
	}

	return true
}

func (cli *CLI) printError(err error) {
	fmt.Printf("%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
}

func (cli *CLI) printUsage(usage string) {
	fmt.Printf("%s✗ Usage: %s%s\n", ErrorColor, usage, ResetColor)
}

func (cli *CLI) printHelp() {
	fmt.Println()
	fmt.Printf("%s%sSpecial Commands:%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Println("  .help, .h                 Show this help message")
	fmt.Println("  .quit, .exit              Exit the CLI")
	fmt.Println("  .branches                 List branches")
	fmt.Println("  .branch <name>            Create a branch from the current one")
	fmt.Println("  .checkout <branch>        Switch the working branch")
	fmt.Println("  .merge <branch> [strat]   Merge a branch into the current one")
	fmt.Println("  .conflicts <mergeId>      List conflicts of a suspended merge")
	fmt.Println("  .resolve <m> <c> <res>    Resolve a conflict")
	fmt.Println("  .finalize <mergeId>       Finalize a suspended merge")
	fmt.Println("  .abort <mergeId>          Abort a suspended merge")
	fmt.Println("  .objects                  List schema objects on this branch")
	fmt.Println("  .show <kind> <name>       Show an object definition")
	fmt.Println("  .log [n]                  Show recent commits")
	fmt.Println("  .diff <a> <b>             Diff two branches")
	fmt.Println("  .verify                   Check branch integrity")
	fmt.Println("  .gc                       Run garbage collection")
	fmt.Println("  .export <target>          Export the schema (file, s3:// or path)")
	fmt.Println("  .import <file>            Apply DDL statements from a file")
	fmt.Println("  .history                  Show command history")
	fmt.Println("  .clear                    Clear the screen")
	fmt.Println("  .version                  Show version info")
	fmt.Println()
	fmt.Printf("%s%sDDL Statements:%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Println("  CREATE TABLE <name> (...);")
	fmt.Println("  CREATE [MATERIALIZED] VIEW <name> AS ...;")
	fmt.Println("  CREATE [UNIQUE] INDEX <name> ON ...;")
	fmt.Println("  CREATE FUNCTION | PROCEDURE | SEQUENCE | TRIGGER ...;")
	fmt.Println("  ALTER TABLE <name> ...;")
	fmt.Println("  DROP TABLE | VIEW | INDEX | ... <name>;")
	fmt.Println()
	fmt.Printf("%s%sMerge strategies:%s auto, source_wins, target_wins, manual_review, union\n", BoldColor, PromptColor, ResetColor)
	fmt.Println()
}

func (cli *CLI) runMerge(source string, strategy ps.MergeStrategy) {
	op, err := cli.engine.Merge(source, strategy)
	if err != nil {
		cli.printError(err)
		return
	}

	switch op.Status {
	case ps.MergeCompleted:
		if op.FastForward {
			fmt.Printf("%s✓ Fast-forwarded to %s%s\n", SuccessColor, shortId(op.ResultCommit), ResetColor)
		} else {
			fmt.Printf("%s✓ Merged %s into %s: %s%s\n", SuccessColor, source, cli.engine.Branch, shortId(op.ResultCommit), ResetColor)
		}
	case ps.MergeConflicted:
		fmt.Printf("%s✗ Merge %s suspended with %d unresolved conflict(s)%s\n",
			ErrorColor, op.Id, op.PendingConflicts(), ResetColor)
		fmt.Printf("  Use .conflicts %s then .resolve and .finalize\n", op.Id)
	default:
		fmt.Printf("Merge %s: %s\n", op.Id, op.Status)
	}
}

func (cli *CLI) showBranches() {
	branches, err := cli.engine.ListBranches()
	if err != nil {
		cli.printError(err)
		return
	}
	for _, branch := range branches {
		marker := "  "
		if branch.Name == cli.engine.Branch {
			marker = "* "
		}
		suffix := ""
		if branch.Status != ps.BranchActive {
			suffix = fmt.Sprintf(" (%s)", branch.Status)
		}
		fmt.Printf("%s%s %s%s\n", marker, branch.Name, shortId(branch.Head), suffix)
	}
}

func (cli *CLI) showConflicts(mergeId string) {
	conflicts, err := cli.engine.GetConflicts(mergeId)
	if err != nil {
		cli.printError(err)
		return
	}
	for _, conflict := range conflicts {
		status := string(conflict.Resolution)
		if !conflict.Resolved() {
			status = "pending"
		}
		fmt.Printf("  %s  %-16s %s  [%s]\n", conflict.Id, conflict.Type, conflict.Identity, status)
	}
}

func (cli *CLI) showObjects() {
	objects, err := cli.engine.Objects()
	if err != nil {
		cli.printError(err)
		return
	}
	if len(objects) == 0 {
		fmt.Println("No schema objects")
		return
	}
	for _, obj := range objects {
		fmt.Printf("  %-10s %s\n", obj.Identity.Kind, obj.Identity.Name)
	}
}

func (cli *CLI) showDefinition(kind, name string) {
	id := core.ObjectIdentity{Kind: core.ObjectKind(kind), Name: name}
	definition, exists, err := cli.engine.Definition(id)
	if err != nil {
		cli.printError(err)
		return
	}
	if !exists {
		fmt.Printf("%s✗ No such object: %s%s\n", ErrorColor, id, ResetColor)
		return
	}
	fmt.Println(definition)
}

func (cli *CLI) showLog(limit int) {
	commits, err := cli.engine.Log(limit)
	if err != nil {
		cli.printError(err)
		return
	}
	for _, commit := range commits {
		subject := commit.Message
		if idx := strings.IndexByte(subject, '\n'); idx >= 0 {
			subject = subject[:idx]
		}
		fmt.Printf("  %s  %s  %s\n", shortId(commit.Id), commit.When.Format("2006-01-02 15:04"), subject)
	}
}

func (cli *CLI) showDiff(branchA, branchB string) {
	records, err := cli.engine.DiffBranches(branchA, branchB)
	if err != nil {
		cli.printError(err)
		return
	}
	if len(records) == 0 {
		fmt.Println("No differences")
		return
	}
	for _, record := range records {
		fmt.Printf("  %-10s %s\n", record.Status, record.Identity)
	}
}

func (cli *CLI) addToHistory(cmd string) {
	// Don't add duplicates of the last command
	if len(cli.history) > 0 && cli.history[len(cli.history)-1] == cmd {
		return
	}
	cli.history = append(cli.history, cmd)

	// Limit history size
	if len(cli.history) > 1000 {
		cli.history = cli.history[len(cli.history)-1000:]
	}
}

func (cli *CLI) printHistory() {
	if len(cli.history) == 0 {
		fmt.Println("No command history")
		return
	}

	start := 0
	if len(cli.history) > 20 {
		start = len(cli.history) - 20
	}

	for i := start; i < len(cli.history); i++ {
		fmt.Printf("  %3d  %s\n", i+1, cli.history[i])
	}
}

func getHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".schemavc_history")
}

func (cli *CLI) loadHistory() {
	if cli.historyFile == "" {
		return
	}

	file, err := os.Open(cli.historyFile)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		cli.history = append(cli.history, scanner.Text())
	}
}

func (cli *CLI) saveHistory() {
	if cli.historyFile == "" {
		return
	}

	file, err := os.Create(cli.historyFile)
	if err != nil {
		return
	}
	defer file.Close()

	// Save last 1000 entries
	start := 0
	if len(cli.history) > 1000 {
		start = len(cli.history) - 1000
	}

	for i := start; i < len(cli.history); i++ {
		_, _ = file.WriteString(cli.history[i] + "\n")
	}
}

// importFile applies DDL statements from a file as one transaction
func (cli *CLI) importFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	txn, err := cli.engine.ApplyScript(string(data))
	if err != nil {
		return err
	}

	fmt.Printf("%s✓ Import complete: committed %s%s\n", SuccessColor, shortId(txn.Id), ResetColor)
	return nil
}

// shortId abbreviates a commit hash for display
func shortId(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
