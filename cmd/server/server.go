package main

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"sync"

	"github.com/nickyhof/SchemaVC"
	"github.com/nickyhof/SchemaVC/core"
	"github.com/nickyhof/SchemaVC/ps"
	"github.com/nickyhof/SchemaVC/vc"
)

// Server is a TCP server exposing the SchemaVC engine. Each connection
// gets its own engine bound to its authenticated identity and working
// branch; the shared persistence serializes the writes.
type Server struct {
	listener   net.Listener
	instance   *SchemaVC.Instance
	identity   core.Identity
	authConfig *AuthConfig
	done       chan struct{}
	wg         sync.WaitGroup
}

// NewServer creates a new server with the given SchemaVC instance. The
// identity is the fallback for unauthenticated connections.
func NewServer(instance *SchemaVC.Instance, identity core.Identity, authConfig *AuthConfig) *Server {
	return &Server{
		instance:   instance,
		identity:   identity,
		authConfig: authConfig,
		done:       make(chan struct{}),
	}
}

// Start begins listening for connections on the specified address.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.listener = listener

	log.Printf("SchemaVC server listening on %s", addr)

	go s.acceptLoop()
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	close(s.done)
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	return nil
}

// Addr returns the server's listening address.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				log.Printf("Accept error: %v", err)
				continue
			}
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	log.Printf("Client connected: %s", conn.RemoteAddr())

	state := &ConnectionState{}
	engine := s.instance.Engine(s.identity)

	reader := bufio.NewReader(conn)

	for {
		select {
		case <-s.done:
			return
		default:
		}

		// One JSON request per line
		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				log.Printf("Read error from %s: %v", conn.RemoteAddr(), err)
			}
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.ToLower(line) == "quit" || strings.ToLower(line) == "exit" {
			log.Printf("Client disconnected: %s", conn.RemoteAddr())
			return
		}

		var response Response
		if strings.HasPrefix(strings.ToUpper(line), "AUTH ") {
			response = s.handleAuth(line, state)
			if state.IsAuthenticated() {
				// Rebind the engine to the authenticated identity,
				// keeping the connection's working branch
				branch := engine.Branch
				engine = s.instance.Engine(*state.Identity())
				engine.Branch = branch
			}
		} else if s.authConfig != nil && s.authConfig.Enabled && !state.IsAuthenticated() {
			response = Response{
				Success: false,
				Error:   "authentication required: AUTH JWT <token>",
			}
		} else {
			response = s.executeCommand(engine, line)
		}

		data, err := EncodeResponse(response)
		if err != nil {
			log.Printf("Failed to encode response: %v", err)
			continue
		}

		if _, err := conn.Write(data); err != nil {
			log.Printf("Write error to %s: %v", conn.RemoteAddr(), err)
			return
		}
	}
}

func (s *Server) executeCommand(engine *vc.Engine, line string) Response {
	req, err := DecodeRequest([]byte(line))
	if err != nil {
		return errorResponse("", fmt.Errorf("malformed request: %w", err))
	}

	switch req.Command {
	case "apply":
		txn, err := engine.Apply(req.SQL)
		if err != nil {
			return errorResponse("commit", err)
		}
		return successResponse("commit", txn)

	case "script":
		txn, err := engine.ApplyScript(req.SQL)
		if err != nil {
			return errorResponse("commit", err)
		}
		return successResponse("commit", txn)

	case "checkout":
		if err := engine.Checkout(req.Branch); err != nil {
			return errorResponse("checkout", err)
		}
		return successResponse("checkout", req.Branch)

	case "branch":
		if err := engine.CreateBranch(req.Name); err != nil {
			return errorResponse("branch", err)
		}
		return successResponse("branch", req.Name)

	case "delete_branch":
		if err := engine.DeleteBranch(req.Name, req.Hard); err != nil {
			return errorResponse("branch", err)
		}
		return successResponse("branch", req.Name)

	case "branches":
		branches, err := engine.ListBranches()
		if err != nil {
			return errorResponse("branches", err)
		}
		return successResponse("branches", branches)

	case "reset":
		if err := engine.ResetRef(req.Name, req.Commit); err != nil {
			return errorResponse("reset", err)
		}
		return successResponse("reset", req.Commit)

	case "merge":
		op, err := engine.Merge(req.Source, ps.MergeStrategy(req.Strategy))
		if err != nil {
			return errorResponse("merge", err)
		}
		return successResponse("merge", op)

	case "merges":
		ops, err := engine.ListMergeOperations()
		if err != nil {
			return errorResponse("merges", err)
		}
		return successResponse("merges", ops)

	case "conflicts":
		conflicts, err := engine.GetConflicts(req.MergeId)
		if err != nil {
			return errorResponse("conflicts", err)
		}
		return successResponse("conflicts", conflicts)

	case "resolve":
		conflict, err := engine.Resolve(req.MergeId, req.ConflictId, ps.Resolution(req.Resolution), req.Definition)
		if err != nil {
			return errorResponse("resolve", err)
		}
		return successResponse("resolve", conflict)

	case "finalize":
		op, err := engine.Finalize(req.MergeId)
		if err != nil {
			return errorResponse("merge", err)
		}
		return successResponse("merge", op)

	case "abort":
		if err := engine.AbortMerge(req.MergeId); err != nil {
			return errorResponse("merge", err)
		}
		return successResponse("merge", req.MergeId)

	case "diff":
		records, err := engine.DiffBranches(req.Source, req.Target)
		if err != nil {
			return errorResponse("diff", err)
		}
		return successResponse("diff", records)

	case "log":
		commits, err := engine.Log(req.Limit)
		if err != nil {
			return errorResponse("log", err)
		}
		return successResponse("log", commits)

	case "history":
		id := core.ObjectIdentity{Kind: core.ObjectKind(req.Kind), Name: req.Name}
		commits, err := engine.History(id)
		if err != nil {
			return errorResponse("history", err)
		}
		return successResponse("history", commits)

	case "objects":
		objects, err := engine.Objects()
		if err != nil {
			return errorResponse("objects", err)
		}
		return successResponse("objects", objects)

	case "definition":
		id := core.ObjectIdentity{Kind: core.ObjectKind(req.Kind), Name: req.Name}
		definition, exists, err := engine.Definition(id)
		if err != nil {
			return errorResponse("definition", err)
		}
		if !exists {
			return errorResponse("definition", fmt.Errorf("no such object: %s", id))
		}
		return successResponse("definition", definition)

	case "verify":
		if err := engine.Verify(); err != nil {
			return errorResponse("verify", err)
		}
		return successResponse("verify", engine.Branch)

	case "release":
		if err := engine.ReleaseBranch(req.Name); err != nil {
			return errorResponse("release", err)
		}
		return successResponse("release", req.Name)

	case "gc":
		stats, err := engine.GarbageCollect()
		if err != nil {
			return errorResponse("gc", err)
		}
		return successResponse("gc", stats)

	case "export":
		if err := engine.ExportSchema(req.Target); err != nil {
			return errorResponse("export", err)
		}
		return successResponse("export", req.Target)

	case "import":
		txn, err := engine.ImportSchema(req.Source)
		if err != nil {
			return errorResponse("commit", err)
		}
		return successResponse("commit", txn)

	default:
		return errorResponse("", fmt.Errorf("unknown command: %q", req.Command))
	}
}
