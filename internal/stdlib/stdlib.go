// Package stdlib registers the native (intrinsic) functions spec.md §1
// treats as an external collaborator with a fixed contract ("the C
// standard-library shims (stdio, math, string, ...)"). Each intrinsic is
// the Go shape C10's "Intrinsic function" dispatch path expects:
// func([]*value.Value) (*value.Value, error), registered into the
// dispatcher's flat Intrinsics map under its C-visible name.
//
// Grounded on picoc's cstdlib/*.c shim modules (clibrary.c's registration
// table, a flat {name, native func pointer} list with no per-module
// namespacing) for the overall shape; the concrete functions below stand
// in for stdio/string/network/database shims using the richest
// third-party surface in the retrieval pack, sentra-language-sentra's
// go.mod (internal/database, internal/network), per SPEC_FULL.md §2's
// domain-stack table.
package stdlib

import (
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"github.com/gorilla/websocket"

	"github.com/robinrowe/picoc/internal/call"
	"github.com/robinrowe/picoc/internal/platform"
	"github.com/robinrowe/picoc/internal/types"
	"github.com/robinrowe/picoc/internal/value"
)

// Runtime holds the native-side handle tables the intrinsics below need
// across calls (open database connections, open socket connections).
// Picoc's own cstdlib shims keep this kind of state as C statics inside
// the shim module; Runtime is the non-singleton equivalent, one per
// Engine, matching spec.md's "Global mutable state ... do not make these
// module-level singletons" design note.
type Runtime struct {
	reg *types.Registry

	mu      sync.Mutex
	dbs     map[int64]*sql.DB
	sockets map[int64]*websocket.Conn
	disk    *platform.Sandbox

	nextHandle int64
}

// NewRuntime creates an empty Runtime bound to reg, the type registry
// every constructed return Value is stamped against.
func NewRuntime(reg *types.Registry) *Runtime {
	return &Runtime{
		reg:     reg,
		dbs:     make(map[int64]*sql.DB),
		sockets: make(map[int64]*websocket.Conn),
		disk:    platform.NewSandbox(0),
	}
}

// Register installs every intrinsic this package provides into disp
// under its C-visible name. Intrinsics take priority over same-named
// interpreted definitions, per call.Dispatcher's documented precedence.
func Register(disp *call.Dispatcher, rt *Runtime) {
	disp.RegisterIntrinsic("uuid", rt.uuidIntrinsic)
	disp.RegisterIntrinsic("crypt", rt.cryptIntrinsic)
	disp.RegisterIntrinsic("crypt_verify", rt.cryptVerifyIntrinsic)
	disp.RegisterIntrinsic("db_open", rt.dbOpenIntrinsic)
	disp.RegisterIntrinsic("db_exec", rt.dbExecIntrinsic)
	disp.RegisterIntrinsic("db_query_int", rt.dbQueryIntIntrinsic)
	disp.RegisterIntrinsic("db_close", rt.dbCloseIntrinsic)
	disp.RegisterIntrinsic("net_dial", rt.netDialIntrinsic)
	disp.RegisterIntrinsic("net_send", rt.netSendIntrinsic)
	disp.RegisterIntrinsic("net_recv", rt.netRecvIntrinsic)
	disp.RegisterIntrinsic("net_close", rt.netCloseIntrinsic)

	disp.RegisterIntrinsic("puts", rt.putsIntrinsic)
	disp.RegisterIntrinsic("print_int", rt.printIntIntrinsic)
	disp.RegisterIntrinsic("strlen", rt.strlenIntrinsic)

	disp.RegisterIntrinsic("file_write", rt.fileWriteIntrinsic)
	disp.RegisterIntrinsic("file_read", rt.fileReadIntrinsic)
	disp.RegisterIntrinsic("file_delete", rt.fileDeleteIntrinsic)
	disp.RegisterIntrinsic("file_size", rt.fileSizeIntrinsic)
	disp.RegisterIntrinsic("file_free_space", rt.fileFreeSpaceIntrinsic)
}

// ---- argument/result helpers ----------------------------------------

// argString reads a char[] or char* argument as a Go string, stopping at
// the first NUL byte, matching C's string representation.
func argString(v *value.Value) (string, error) {
	switch v.Type.Base {
	case types.Array:
		return cStr(v.Payload.Bytes), nil
	case types.Pointer:
		if v.IsNullPointer() {
			return "", fmt.Errorf("stdlib: null pointer string argument")
		}
		return cStr(v.Pointee.Payload.Bytes[v.Offset:]), nil
	default:
		return "", fmt.Errorf("stdlib: expected a char[] or char* argument, got %v", v.Type.Base)
	}
}

func cStr(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func argInt(v *value.Value) (int64, error) {
	if !v.Type.Base.IsInteger() && v.Type.Base != types.Pointer {
		return 0, fmt.Errorf("stdlib: expected an integer argument, got %v", v.Type.Base)
	}
	if v.Type.Base == types.Pointer {
		return v.Address(), nil
	}
	return v.Int(), nil
}

func (rt *Runtime) newString(s string) *value.Value {
	bytes := append([]byte(s), 0)
	arrType := rt.reg.ArrayOf(rt.reg.Base(types.Char), len(bytes))
	v := value.FromType(arrType, false, nil, false)
	copy(v.Payload.Bytes, bytes)
	return v
}

func (rt *Runtime) newInt(n int64) *value.Value {
	v := value.FromType(rt.reg.Base(types.Int), false, nil, false)
	v.SetInt(n)
	return v
}

func checkArgc(name string, args []*value.Value, want int) error {
	if len(args) != want {
		return fmt.Errorf("stdlib: %s expects %d argument(s), got %d", name, want, len(args))
	}
	return nil
}

// ---- uuid() -----------------------------------------------------------

// uuidIntrinsic demonstrates C10's plain intrinsic-function path with
// google/uuid: a native function pointer taking no arguments and
// returning a freshly generated value, the simplest shape spec.md's
// "Intrinsic function. Call the native function pointer with (parser,
// return_value, argv, argc)" describes.
func (rt *Runtime) uuidIntrinsic(args []*value.Value) (*value.Value, error) {
	if err := checkArgc("uuid", args, 0); err != nil {
		return nil, err
	}
	return rt.newString(uuid.NewString()), nil
}

// ---- crypt()/crypt_verify() --------------------------------------------

// cryptIntrinsic mirrors classic C crypt(3): hash a password string,
// returning the encoded hash. Unlike crypt(3)'s fixed-width DES output,
// this uses bcrypt, which surfaces its own error domain (cost-parameter
// validation, input-length limits) back through the intrinsic's error
// return -- exactly the "non-trivial native function with its own error
// domain" SPEC_FULL.md §2 calls for.
func (rt *Runtime) cryptIntrinsic(args []*value.Value) (*value.Value, error) {
	if err := checkArgc("crypt", args, 1); err != nil {
		return nil, err
	}
	pw, err := argString(args[0])
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("stdlib: crypt: %w", err)
	}
	return rt.newString(string(hash)), nil
}

// cryptVerifyIntrinsic checks a plaintext password against a hash
// produced by crypt(), returning 1 on match, 0 otherwise.
func (rt *Runtime) cryptVerifyIntrinsic(args []*value.Value) (*value.Value, error) {
	if err := checkArgc("crypt_verify", args, 2); err != nil {
		return nil, err
	}
	pw, err := argString(args[0])
	if err != nil {
		return nil, err
	}
	hash, err := argString(args[1])
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil {
		return rt.newInt(1), nil
	}
	return rt.newInt(0), nil
}

// ---- db_open()/db_exec()/db_query_int()/db_close() ---------------------

// dbOpenIntrinsic stands in for the out-of-scope "C standard-library
// shims" collaborator with a concrete, runnable native call: open a
// sqlite3 database file (or ":memory:") and return an opaque int handle
// interpreted code threads through the other db_* intrinsics.
func (rt *Runtime) dbOpenIntrinsic(args []*value.Value) (*value.Value, error) {
	if err := checkArgc("db_open", args, 1); err != nil {
		return nil, err
	}
	path, err := argString(args[0])
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("stdlib: db_open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("stdlib: db_open: %w", err)
	}
	h := atomic.AddInt64(&rt.nextHandle, 1)
	rt.mu.Lock()
	rt.dbs[h] = db
	rt.mu.Unlock()
	return rt.newInt(h), nil
}

// dbExecIntrinsic runs a non-query statement (DDL/DML), returning the
// number of rows affected, or -1 if the driver doesn't report one.
func (rt *Runtime) dbExecIntrinsic(args []*value.Value) (*value.Value, error) {
	if err := checkArgc("db_exec", args, 2); err != nil {
		return nil, err
	}
	h, err := argInt(args[0])
	if err != nil {
		return nil, err
	}
	query, err := argString(args[1])
	if err != nil {
		return nil, err
	}
	db, err := rt.lookupDB(h)
	if err != nil {
		return nil, err
	}
	res, err := db.Exec(query)
	if err != nil {
		return nil, fmt.Errorf("stdlib: db_exec: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return rt.newInt(-1), nil
	}
	return rt.newInt(n), nil
}

// dbQueryIntIntrinsic runs a query expected to return exactly one
// integer column (e.g. a `SELECT COUNT(*)`), returning that value.
func (rt *Runtime) dbQueryIntIntrinsic(args []*value.Value) (*value.Value, error) {
	if err := checkArgc("db_query_int", args, 2); err != nil {
		return nil, err
	}
	h, err := argInt(args[0])
	if err != nil {
		return nil, err
	}
	query, err := argString(args[1])
	if err != nil {
		return nil, err
	}
	db, err := rt.lookupDB(h)
	if err != nil {
		return nil, err
	}
	var n int64
	if err := db.QueryRow(query).Scan(&n); err != nil {
		return nil, fmt.Errorf("stdlib: db_query_int: %w", err)
	}
	return rt.newInt(n), nil
}

// dbCloseIntrinsic releases a handle opened by db_open.
func (rt *Runtime) dbCloseIntrinsic(args []*value.Value) (*value.Value, error) {
	if err := checkArgc("db_close", args, 1); err != nil {
		return nil, err
	}
	h, err := argInt(args[0])
	if err != nil {
		return nil, err
	}
	rt.mu.Lock()
	db, ok := rt.dbs[h]
	delete(rt.dbs, h)
	rt.mu.Unlock()
	if !ok {
		return rt.newInt(-1), nil
	}
	if err := db.Close(); err != nil {
		return nil, fmt.Errorf("stdlib: db_close: %w", err)
	}
	return rt.newInt(0), nil
}

func (rt *Runtime) lookupDB(h int64) (*sql.DB, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	db, ok := rt.dbs[h]
	if !ok {
		return nil, fmt.Errorf("stdlib: unknown database handle %d", h)
	}
	return db, nil
}

// ---- net_dial()/net_send()/net_recv()/net_close() -----------------------

// netDialIntrinsic opens a websocket connection, the "platform glue"
// network collaborator made concrete with gorilla/websocket, returning
// an opaque int handle.
func (rt *Runtime) netDialIntrinsic(args []*value.Value) (*value.Value, error) {
	if err := checkArgc("net_dial", args, 1); err != nil {
		return nil, err
	}
	url, err := argString(args[0])
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("stdlib: net_dial: %w", err)
	}
	h := atomic.AddInt64(&rt.nextHandle, 1)
	rt.mu.Lock()
	rt.sockets[h] = conn
	rt.mu.Unlock()
	return rt.newInt(h), nil
}

// netSendIntrinsic writes a text message over a net_dial handle.
func (rt *Runtime) netSendIntrinsic(args []*value.Value) (*value.Value, error) {
	if err := checkArgc("net_send", args, 2); err != nil {
		return nil, err
	}
	h, err := argInt(args[0])
	if err != nil {
		return nil, err
	}
	msg, err := argString(args[1])
	if err != nil {
		return nil, err
	}
	conn, err := rt.lookupSocket(h)
	if err != nil {
		return nil, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		return rt.newInt(-1), nil
	}
	return rt.newInt(0), nil
}

// netRecvIntrinsic blocks for the next text message on a net_dial
// handle, returning it, or an empty string on error.
func (rt *Runtime) netRecvIntrinsic(args []*value.Value) (*value.Value, error) {
	if err := checkArgc("net_recv", args, 1); err != nil {
		return nil, err
	}
	h, err := argInt(args[0])
	if err != nil {
		return nil, err
	}
	conn, err := rt.lookupSocket(h)
	if err != nil {
		return nil, err
	}
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return rt.newString(""), nil
	}
	return rt.newString(string(msg)), nil
}

// netCloseIntrinsic releases a handle opened by net_dial.
func (rt *Runtime) netCloseIntrinsic(args []*value.Value) (*value.Value, error) {
	if err := checkArgc("net_close", args, 1); err != nil {
		return nil, err
	}
	h, err := argInt(args[0])
	if err != nil {
		return nil, err
	}
	rt.mu.Lock()
	conn, ok := rt.sockets[h]
	delete(rt.sockets, h)
	rt.mu.Unlock()
	if !ok {
		return rt.newInt(-1), nil
	}
	if err := conn.Close(); err != nil {
		return nil, fmt.Errorf("stdlib: net_close: %w", err)
	}
	return rt.newInt(0), nil
}

func (rt *Runtime) lookupSocket(h int64) (*websocket.Conn, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	conn, ok := rt.sockets[h]
	if !ok {
		return nil, fmt.Errorf("stdlib: unknown socket handle %d", h)
	}
	return conn, nil
}

// ---- minimal stdio/string shims ----------------------------------------
//
// spec.md §1 places "the C standard-library shims (stdio, math, string,
// ...)" out of scope as an external collaborator with a fixed contract.
// These three are implemented anyway, minimally, so an interpreted
// program can produce observable output at all -- the same rationale
// SPEC_FULL.md §3 gives for carrying forward control-flow statements the
// expression-evaluator core itself doesn't need.

// putsIntrinsic writes a string followed by a newline to stdout,
// returning the number of bytes written (picoc's puts(3) returns a
// non-negative value on success, EOF on failure; this shim only models
// the success path since os.Stdout writes essentially never fail for an
// interpreted script).
func (rt *Runtime) putsIntrinsic(args []*value.Value) (*value.Value, error) {
	if err := checkArgc("puts", args, 1); err != nil {
		return nil, err
	}
	s, err := argString(args[0])
	if err != nil {
		return nil, err
	}
	n, _ := fmt.Println(s)
	return rt.newInt(int64(n)), nil
}

// printIntIntrinsic writes an integer followed by a newline to stdout.
func (rt *Runtime) printIntIntrinsic(args []*value.Value) (*value.Value, error) {
	if err := checkArgc("print_int", args, 1); err != nil {
		return nil, err
	}
	n, err := argInt(args[0])
	if err != nil {
		return nil, err
	}
	fmt.Println(n)
	return rt.newInt(0), nil
}

// strlenIntrinsic returns the length of a char[]/char* argument, not
// counting the terminating NUL, matching C's strlen(3).
func (rt *Runtime) strlenIntrinsic(args []*value.Value) (*value.Value, error) {
	if err := checkArgc("strlen", args, 1); err != nil {
		return nil, err
	}
	s, err := argString(args[0])
	if err != nil {
		return nil, err
	}
	return rt.newInt(int64(len(s))), nil
}

// ---- sandboxed file intrinsics -----------------------------------------
//
// Picoc's own fopen/fread/fwrite shims call straight through to the
// host's libc; this core may run untrusted interpreted programs, so the
// "platform glue" collaborator (spec.md §1) is internal/platform's
// quota-bounded in-memory Sandbox instead of the real filesystem.

// fileWriteIntrinsic overwrites (or creates) a file on the sandboxed
// disk with content, returning the number of bytes written, or -1 on an
// invalid filename or quota overflow.
func (rt *Runtime) fileWriteIntrinsic(args []*value.Value) (*value.Value, error) {
	if err := checkArgc("file_write", args, 2); err != nil {
		return nil, err
	}
	name, err := argString(args[0])
	if err != nil {
		return nil, err
	}
	content, err := argString(args[1])
	if err != nil {
		return nil, err
	}
	if err := rt.disk.Write(name, []byte(content)); err != nil {
		return rt.newInt(-1), nil
	}
	return rt.newInt(int64(len(content))), nil
}

// fileReadIntrinsic returns a file's full contents, or an empty string
// if the file doesn't exist or the name is invalid.
func (rt *Runtime) fileReadIntrinsic(args []*value.Value) (*value.Value, error) {
	if err := checkArgc("file_read", args, 1); err != nil {
		return nil, err
	}
	name, err := argString(args[0])
	if err != nil {
		return nil, err
	}
	data, err := rt.disk.Read(name)
	if err != nil {
		return rt.newString(""), nil
	}
	return rt.newString(string(data)), nil
}

// fileDeleteIntrinsic removes a file from the sandboxed disk, returning
// 0 on success, -1 if it didn't exist or the name is invalid.
func (rt *Runtime) fileDeleteIntrinsic(args []*value.Value) (*value.Value, error) {
	if err := checkArgc("file_delete", args, 1); err != nil {
		return nil, err
	}
	name, err := argString(args[0])
	if err != nil {
		return nil, err
	}
	if err := rt.disk.Delete(name); err != nil {
		return rt.newInt(-1), nil
	}
	return rt.newInt(0), nil
}

// fileSizeIntrinsic returns a file's size in bytes, or -1 if it doesn't
// exist or the name is invalid.
func (rt *Runtime) fileSizeIntrinsic(args []*value.Value) (*value.Value, error) {
	if err := checkArgc("file_size", args, 1); err != nil {
		return nil, err
	}
	name, err := argString(args[0])
	if err != nil {
		return nil, err
	}
	n, err := rt.disk.Size(name)
	if err != nil {
		return rt.newInt(-1), nil
	}
	return rt.newInt(int64(n)), nil
}

// fileFreeSpaceIntrinsic returns the number of bytes still available
// under the sandbox's quota.
func (rt *Runtime) fileFreeSpaceIntrinsic(args []*value.Value) (*value.Value, error) {
	if err := checkArgc("file_free_space", args, 0); err != nil {
		return nil, err
	}
	return rt.newInt(int64(rt.disk.FreeSpace())), nil
}

// ArenaStats renders a human-readable summary of an arena's current stack
// usage and live detached bytes, for cmd/picoc's -arena-stats flag.
func ArenaStats(stackBytes, stackCap, detachedBytes int) string {
	return fmt.Sprintf("stack: %s / %s, detached: %s",
		humanize.Bytes(uint64(stackBytes)),
		humanize.Bytes(uint64(stackCap)),
		humanize.Bytes(uint64(detachedBytes)))
}
