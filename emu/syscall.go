// Package emu provides functional RISC-V emulation.
package emu

import (
	"io"
	"os"
	"strings"
)

// RISC-V Linux syscall numbers (the generic 64-bit table, shared by
// both register widths).
const (
	SyscallOpenat uint64 = 56 // openat(dirfd, path, flags, mode)
	SyscallClose  uint64 = 57 // close(fd)
	SyscallRead   uint64 = 63 // read(fd, buf, count)
	SyscallWrite  uint64 = 64 // write(fd, buf, count)
	SyscallExit   uint64 = 93 // exit(status)
)

// Linux error codes.
const (
	ENOENT = 2  // No such file or directory
	EIO    = 5  // I/O error
	EBADF  = 9  // Bad file descriptor
	EACCES = 13 // Permission denied
	EFAULT = 14 // Bad address
)

// Syscall argument registers in the RISC-V calling convention.
const (
	regA0 = 10
	regA1 = 11
	regA2 = 12
	regA3 = 13
	regA7 = 17
)

// openat dirfd sentinel meaning "relative to the working directory".
const atFDCWD = -100

// AT_FDCWD_U64 is the register image of the AT_FDCWD sentinel (the
// two's complement of -100), as a guest passes it in a0.
const AT_FDCWD_U64 uint64 = 0xFFFFFFFFFFFFFF9C

// Guest open(2) flag bits, as RISC-V Linux defines them.
const (
	guestWRONLY uint64 = 0x1
	guestRDWR   uint64 = 0x2
	guestCREAT  uint64 = 0x40
	guestTRUNC  uint64 = 0x200
	guestAPPEND uint64 = 0x400
)

const maxPathLen = 4096

// SyscallResult represents the result of a syscall execution.
type SyscallResult struct {
	// Handled is false if the handler does not recognize the syscall
	// number; the emulator then raises the architectural environment
	// call trap instead.
	Handled bool

	// Exited is true if the syscall caused program termination.
	Exited bool

	// ExitCode is the exit status if Exited is true.
	ExitCode int64
}

// SyscallHandler is the interface for handling environment calls.
type SyscallHandler interface {
	// Handle executes the syscall indicated by the register file state.
	// RISC-V Linux syscall convention:
	//   - Syscall number in a7
	//   - Arguments in a0-a5
	//   - Return value in a0
	Handle() SyscallResult
}

// DefaultSyscallHandler implements the basic file and process syscalls
// against the host.
type DefaultSyscallHandler struct {
	regFile *RegFile
	memory  *Memory
	fdTable *FDTable
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
}

// NewDefaultSyscallHandler creates a default syscall handler.
func NewDefaultSyscallHandler(regFile *RegFile, memory *Memory, stdout, stderr io.Writer) *DefaultSyscallHandler {
	return &DefaultSyscallHandler{
		regFile: regFile,
		memory:  memory,
		fdTable: NewFDTable(),
		stdin:   nil,
		stdout:  stdout,
		stderr:  stderr,
	}
}

// SetStdin sets the stdin reader for the syscall handler.
func (h *DefaultSyscallHandler) SetStdin(stdin io.Reader) {
	h.stdin = stdin
}

// Handle executes the syscall indicated by the register file state.
func (h *DefaultSyscallHandler) Handle() SyscallResult {
	syscallNum := h.regFile.ReadReg(regA7)

	switch syscallNum {
	case SyscallOpenat:
		return h.handleOpenat()
	case SyscallClose:
		return h.handleClose()
	case SyscallRead:
		return h.handleRead()
	case SyscallWrite:
		return h.handleWrite()
	case SyscallExit:
		return h.handleExit()
	default:
		// Unrecognized numbers are not emulated; the caller raises the
		// environment call trap so guest handlers can see them.
		return SyscallResult{}
	}
}

// handleExit handles the exit syscall (93).
func (h *DefaultSyscallHandler) handleExit() SyscallResult {
	exitCode := h.regFile.XLen().Signed(h.regFile.ReadReg(regA0))
	return SyscallResult{
		Handled:  true,
		Exited:   true,
		ExitCode: exitCode,
	}
}

// handleOpenat handles the openat syscall (56). Only AT_FDCWD-relative
// and absolute paths are supported; any other directory descriptor
// reports EBADF.
func (h *DefaultSyscallHandler) handleOpenat() SyscallResult {
	dirfd := h.regFile.XLen().Signed(h.regFile.ReadReg(regA0))
	pathPtr := h.regFile.ReadReg(regA1)
	flags := h.regFile.ReadReg(regA2)
	mode := h.regFile.ReadReg(regA3)

	path, ok := h.readPath(pathPtr)
	if !ok {
		h.setError(EFAULT)
		return SyscallResult{Handled: true}
	}
	if dirfd != atFDCWD && !strings.HasPrefix(path, "/") {
		h.setError(EBADF)
		return SyscallResult{Handled: true}
	}

	fd, err := h.fdTable.Open(path, hostFlags(flags), os.FileMode(mode&0777))
	if err != nil {
		if os.IsNotExist(err) {
			h.setError(ENOENT)
		} else {
			h.setError(EACCES)
		}
		return SyscallResult{Handled: true}
	}

	h.regFile.WriteReg(regA0, fd)
	return SyscallResult{Handled: true}
}

// handleClose handles the close syscall (57). Closing a standard
// stream succeeds without closing anything on the host.
func (h *DefaultSyscallHandler) handleClose() SyscallResult {
	fd := h.regFile.ReadReg(regA0)

	if fd <= 2 {
		h.regFile.WriteReg(regA0, 0)
		return SyscallResult{Handled: true}
	}
	if err := h.fdTable.Close(fd); err != nil {
		h.setError(EBADF)
		return SyscallResult{Handled: true}
	}
	h.regFile.WriteReg(regA0, 0)
	return SyscallResult{Handled: true}
}

// handleRead handles the read syscall (63).
func (h *DefaultSyscallHandler) handleRead() SyscallResult {
	fd := h.regFile.ReadReg(regA0)
	bufPtr := h.regFile.ReadReg(regA1)
	count := h.regFile.ReadReg(regA2)

	if !h.memory.inBounds(bufPtr, count) {
		h.setError(EFAULT)
		return SyscallResult{Handled: true}
	}

	buf := make([]byte, count)
	var n int
	var err error
	switch {
	case fd == 0:
		if h.stdin == nil {
			// No stdin configured reads as EOF.
			h.regFile.WriteReg(regA0, 0)
			return SyscallResult{Handled: true}
		}
		n, err = h.stdin.Read(buf)
	case fd <= 2:
		h.setError(EBADF)
		return SyscallResult{Handled: true}
	default:
		n, err = h.fdTable.Read(fd, buf)
	}
	if err != nil && n == 0 {
		switch err {
		case io.EOF:
			h.regFile.WriteReg(regA0, 0)
		case os.ErrInvalid:
			h.setError(EBADF)
		default:
			h.setError(EIO)
		}
		return SyscallResult{Handled: true}
	}

	if err := h.memory.WriteBytes(bufPtr, buf[:n]); err != nil {
		h.setError(EFAULT)
		return SyscallResult{Handled: true}
	}
	h.regFile.WriteReg(regA0, uint64(n))
	return SyscallResult{Handled: true}
}

// handleWrite handles the write syscall (64).
func (h *DefaultSyscallHandler) handleWrite() SyscallResult {
	fd := h.regFile.ReadReg(regA0)
	bufPtr := h.regFile.ReadReg(regA1)
	count := h.regFile.ReadReg(regA2)

	buf, err := h.memory.Dump(bufPtr, count)
	if err != nil {
		h.setError(EFAULT)
		return SyscallResult{Handled: true}
	}

	var n int
	switch fd {
	case 0:
		h.setError(EBADF)
		return SyscallResult{Handled: true}
	case 1:
		n, err = h.stdout.Write(buf)
	case 2:
		n, err = h.stderr.Write(buf)
	default:
		n, err = h.fdTable.Write(fd, buf)
	}
	if err != nil {
		if err == os.ErrInvalid {
			h.setError(EBADF)
		} else {
			h.setError(EIO)
		}
		return SyscallResult{Handled: true}
	}

	h.regFile.WriteReg(regA0, uint64(n))
	return SyscallResult{Handled: true}
}

// readPath reads a NUL-terminated path from guest memory.
func (h *DefaultSyscallHandler) readPath(addr uint64) (string, bool) {
	var buf []byte
	for i := uint64(0); i < maxPathLen; i++ {
		b, fault := h.memory.Read8(addr + i)
		if fault != nil {
			return "", false
		}
		if b == 0 {
			return string(buf), true
		}
		buf = append(buf, b)
	}
	return "", false
}

// setError sets a0 to -errno as two's complement.
func (h *DefaultSyscallHandler) setError(errno int) {
	h.regFile.WriteReg(regA0, uint64(-int64(errno)))
}

func hostFlags(guest uint64) int {
	var flags int
	switch guest & 0x3 {
	case guestWRONLY:
		flags = os.O_WRONLY
	case guestRDWR:
		flags = os.O_RDWR
	default:
		flags = os.O_RDONLY
	}
	if guest&guestCREAT != 0 {
		flags |= os.O_CREATE
	}
	if guest&guestTRUNC != 0 {
		flags |= os.O_TRUNC
	}
	if guest&guestAPPEND != 0 {
		flags |= os.O_APPEND
	}
	return flags
}
