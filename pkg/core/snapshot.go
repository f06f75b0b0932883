package core

import (
	"errors"
	"fmt"
	"hash/crc32"
	"time"

	"github.com/dankorotin/countergo/pkg/cell"
	"github.com/dankorotin/countergo/pkg/core/dao"
	"github.com/dankorotin/countergo/pkg/core/state"
	"github.com/dankorotin/countergo/pkg/io"
	"github.com/google/uuid"
	"github.com/pierrec/lz4"
	"go.uber.org/zap"
)

// Snapshot layout: magic, format version, dump id, creation timestamp,
// uncompressed body size, compression flag, body, CRC-32C trailer. The body
// holds the storage schema version, the root cell bag and every execution
// record.
const (
	snapshotMagic   uint32 = 0x63677331 // "cgs1"
	snapshotVersion byte   = 1

	// Decompression bomb protection.
	maxSnapshotBodySize = 64 << 20
)

var (
	// ErrSnapshotChecksum is returned when a snapshot fails the integrity
	// check.
	ErrSnapshotChecksum = errors.New("snapshot checksum mismatch")
	// ErrSnapshotFormat is returned for malformed snapshots.
	ErrSnapshotFormat = errors.New("invalid snapshot format")
	// ErrStateNotEmpty is returned when restoring over already mutated
	// state.
	ErrStateNotEmpty = errors.New("state is not empty")
)

var snapshotCrcTable = crc32.MakeTable(crc32.Castagnoli)

// DumpState serializes the complete counter state into a self-contained
// snapshot: an lz4-compressed body carrying the root cell and the execution
// history, stamped with a fresh dump id and guarded by a checksum.
func (e *Engine) DumpState() ([]byte, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()

	root, err := e.dao.GetRootCell()
	if err != nil {
		return nil, fmt.Errorf("failed to get root cell: %w", err)
	}
	bag, err := cell.EncodeBag(root)
	if err != nil {
		return nil, fmt.Errorf("failed to encode root cell: %w", err)
	}
	count, err := e.dao.GetExecutionCount()
	if err != nil {
		return nil, fmt.Errorf("failed to get execution count: %w", err)
	}
	execs, err := e.dao.GetExecutions(0, int(count))
	if err != nil {
		return nil, fmt.Errorf("failed to get executions: %w", err)
	}

	body := io.NewBufBinWriter()
	body.WriteString(dao.Version)
	body.WriteVarBytes(bag)
	io.WriteArray(body.BinWriter, execs)
	raw := body.Bytes()
	if raw == nil {
		return nil, body.Err
	}

	compressed := make([]byte, lz4.CompressBlockBound(len(raw)))
	n, err := lz4.CompressBlock(raw, compressed, make([]int, 1<<16))
	if err != nil {
		return nil, fmt.Errorf("failed to compress snapshot: %w", err)
	}

	buf := io.NewBufBinWriter()
	buf.WriteU32BE(snapshotMagic)
	buf.WriteB(snapshotVersion)
	id := uuid.New()
	buf.WriteBytes(id[:])
	buf.WriteU64LE(uint64(time.Now().Unix()))
	buf.WriteVarUint(uint64(len(raw)))
	if n == 0 || n >= len(raw) {
		// Incompressible body, store it as is.
		buf.WriteBool(false)
		buf.WriteVarBytes(raw)
	} else {
		buf.WriteBool(true)
		buf.WriteVarBytes(compressed[:n])
	}
	data := buf.Bytes()
	if data == nil {
		return nil, buf.Err
	}
	crc := crc32.Checksum(data, snapshotCrcTable)
	return append(data, byte(crc), byte(crc>>8), byte(crc>>16), byte(crc>>24)), nil
}

// RestoreState replaces the counter state with the one held in the given
// snapshot. It only works on a freshly initialized engine which has no
// executions yet.
func (e *Engine) RestoreState(data []byte) error {
	if len(data) < 4 {
		return ErrSnapshotFormat
	}
	payload, trailer := data[:len(data)-4], data[len(data)-4:]
	crc := crc32.Checksum(payload, snapshotCrcTable)
	if trailer[0] != byte(crc) || trailer[1] != byte(crc>>8) ||
		trailer[2] != byte(crc>>16) || trailer[3] != byte(crc>>24) {
		return ErrSnapshotChecksum
	}

	r := io.NewBinReaderFromBuf(payload)
	if r.ReadU32BE() != snapshotMagic {
		return fmt.Errorf("%w: bad magic", ErrSnapshotFormat)
	}
	if v := r.ReadB(); v != snapshotVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrSnapshotFormat, v)
	}
	var id uuid.UUID
	r.ReadBytes(id[:])
	_ = r.ReadU64LE() // Creation timestamp, informational only.
	rawSize := r.ReadVarUint()
	if rawSize > maxSnapshotBodySize {
		return fmt.Errorf("%w: body is too big (%d)", ErrSnapshotFormat, rawSize)
	}
	isCompressed := r.ReadBool()
	body := r.ReadVarBytes(maxSnapshotBodySize)
	if r.Err != nil {
		return fmt.Errorf("%w: %s", ErrSnapshotFormat, r.Err)
	}
	if isCompressed {
		raw := make([]byte, rawSize)
		n, err := lz4.UncompressBlock(body, raw)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrSnapshotFormat, err)
		}
		body = raw[:n]
	}
	if uint64(len(body)) != rawSize {
		return fmt.Errorf("%w: body size mismatch", ErrSnapshotFormat)
	}

	br := io.NewBinReaderFromBuf(body)
	ver := br.ReadString()
	bag := br.ReadVarBytes()
	var execs []state.Execution
	io.ReadArray(br, &execs)
	if br.Err != nil {
		return fmt.Errorf("%w: %s", ErrSnapshotFormat, br.Err)
	}
	if ver != dao.Version {
		return fmt.Errorf("storage version mismatch (expected=%s, actual=%s)", dao.Version, ver)
	}
	root, err := cell.DecodeBag(bag)
	if err != nil {
		return fmt.Errorf("failed to decode root cell: %w", err)
	}

	e.lock.Lock()
	defer e.lock.Unlock()

	count, err := e.dao.GetExecutionCount()
	if err != nil {
		return err
	}
	if count != 0 {
		return ErrStateNotEmpty
	}
	e.dao.PutVersion(dao.Version)
	if err := e.dao.PutRootCell(root); err != nil {
		e.dao.Discard()
		return err
	}
	for i := range execs {
		if execs[i].Sequence != uint64(i) {
			e.dao.Discard()
			return fmt.Errorf("%w: execution records out of order", ErrSnapshotFormat)
		}
		if err := e.dao.AppendExecution(&execs[i]); err != nil {
			e.dao.Discard()
			return err
		}
	}
	if _, err := e.dao.Persist(); err != nil {
		return fmt.Errorf("failed to persist restored state: %w", err)
	}
	e.execCache.Purge()
	e.log.Info("state restored from snapshot",
		zap.Stringer("hash", root.Hash()),
		zap.Int("executions", len(execs)))
	return nil
}
