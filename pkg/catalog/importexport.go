package catalog

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cuemby/blockcat/pkg/catalogerr"
	metrics "github.com/cuemby/blockcat/pkg/catalogmetrics"
	"github.com/cuemby/blockcat/pkg/log"
)

// CurrentMetadataVersion is the semantic version stamped on every export
// produced by this build.
const CurrentMetadataVersion = "3.0.0"

// docBlockUID is the {left, right} wire shape of a BlockUID.
type docBlockUID struct {
	Left  *uint64 `json:"left"`
	Right *uint64 `json:"right"`
}

func (d docBlockUID) toBlockUID() BlockUID {
	if d.Left == nil || d.Right == nil {
		return SparseBlockUID
	}
	return NewBlockUID(*d.Left, *d.Right)
}

func blockUIDToDoc(uid BlockUID) docBlockUID {
	if !uid.Present {
		return docBlockUID{}
	}
	left, right := uid.Left, uid.Right
	return docBlockUID{Left: &left, Right: &right}
}

// docBlock is the canonical (v3) wire shape of a Block. Field order matches
// the export document: idx, uid, size, checksum, valid.
type docBlock struct {
	Idx      int64       `json:"idx"`
	UID      docBlockUID `json:"uid"`
	Size     int64       `json:"size"`
	Checksum *string     `json:"checksum"`
	Valid    bool        `json:"valid"`
}

// docVersion is the canonical (v3) wire shape of a Version. Columns come
// first; labels and blocks are deliberately last so a streaming parser can
// resolve the scalar fields before it needs to buffer either collection.
type docVersion struct {
	UID       string  `json:"uid"`
	Date      string  `json:"date"`
	Volume    string  `json:"volume"`
	Snapshot  string  `json:"snapshot"`
	Size      int64   `json:"size"`
	BlockSize int64   `json:"block_size"`
	Storage   string  `json:"storage"`
	Status    string  `json:"status"`
	Protected bool    `json:"protected"`

	BytesRead         *int64 `json:"bytes_read"`
	BytesWritten      *int64 `json:"bytes_written"`
	BytesDeduplicated *int64 `json:"bytes_deduplicated"`
	BytesSparse       *int64 `json:"bytes_sparse"`
	Duration          *int64 `json:"duration"`

	Labels map[string]string `json:"labels"`
	Blocks []docBlock        `json:"blocks"`
}

type exportDocument struct {
	MetadataVersion string       `json:"metadata_version"`
	Versions        []docVersion `json:"versions"`
}

// Export writes every version named in uids (or every version in the
// catalog if uids is empty) as a metadata_version-tagged JSON document.
// Compact emits no whitespace; otherwise 2-space indentation is used.
func (s *Store) Export(w io.Writer, uids []string, compact bool) error {
	const op = catalogerr.Op("catalog.Export")
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.ExportDuration, CurrentMetadataVersion)

	var versions []Version
	if len(uids) == 0 {
		var err error
		versions, err = s.GetVersions(VersionFilter{})
		if err != nil {
			return err
		}
	} else {
		for _, uid := range uids {
			v, err := s.GetVersion(uid)
			if err != nil {
				return err
			}
			versions = append(versions, v)
		}
	}

	doc := exportDocument{MetadataVersion: CurrentMetadataVersion}
	for _, v := range versions {
		dv, err := s.toDocVersion(v)
		if err != nil {
			return err
		}
		doc.Versions = append(doc.Versions, dv)
	}

	enc := json.NewEncoder(w)
	if !compact {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(doc); err != nil {
		return catalogerr.E(op, catalogerr.Internal, err)
	}
	return nil
}

func (s *Store) toDocVersion(v Version) (docVersion, error) {
	const op = catalogerr.Op("catalog.toDocVersion")

	dv := docVersion{
		UID:               v.UID,
		Date:              FormatTimestamp(v.Date),
		Volume:            v.Volume,
		Snapshot:          v.Snapshot,
		Size:              v.Size,
		BlockSize:         v.BlockSize,
		Storage:           v.StorageName,
		Status:            v.Status.String(),
		Protected:         v.Protected,
		BytesRead:         v.BytesRead,
		BytesWritten:      v.BytesWritten,
		BytesDeduplicated: v.BytesDeduplicated,
		BytesSparse:       v.BytesSparse,
		Duration:          v.Duration,
		Labels:            v.Labels,
	}

	err := s.GetBlocksByVersion(v.ID, v.BlocksCount, v.BlockSize, 1000, func(b Block) error {
		var checksum *string
		if len(b.Checksum) > 0 {
			hex := Checksum(b.Checksum).Hex()
			checksum = &hex
		}
		dv.Blocks = append(dv.Blocks, docBlock{
			Idx:      b.Idx,
			UID:      blockUIDToDoc(b.UID()),
			Size:     b.Size,
			Checksum: checksum,
			Valid:    b.Valid,
		})
		return nil
	})
	if err != nil {
		return docVersion{}, catalogerr.E(op, catalogerr.Internal, err)
	}
	return dv, nil
}

// Import reads a metadata_version-tagged JSON document and inserts every
// version it describes. The whole file is imported transactionally: any
// validation failure rolls back every version in the batch. Import
// dispatches on the document's major version (v1 attribute renames +
// delegation to v3, v2 passthrough to v3, v3 canonical).
func (s *Store) Import(r io.Reader) error {
	const op = catalogerr.Op("catalog.Import")
	logger := log.WithComponent("importexport")

	raw, err := io.ReadAll(r)
	if err != nil {
		return catalogerr.E(op, catalogerr.InputData, err)
	}

	var probe struct {
		MetadataVersion string `json:"metadata_version"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return catalogerr.E(op, catalogerr.InputData, fmt.Errorf("parse metadata_version: %w", err))
	}
	major := majorVersion(probe.MetadataVersion)

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.ImportDuration, probe.MetadataVersion)

	var doc exportDocument
	switch major {
	case 1:
		doc, err = normalizeV1(raw)
	case 2, 3:
		err = json.Unmarshal(raw, &doc)
	default:
		err = fmt.Errorf("unsupported metadata_version %q", probe.MetadataVersion)
	}
	if err != nil {
		return catalogerr.E(op, catalogerr.InputData, err)
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return catalogerr.E(op, catalogerr.Internal, err)
	}
	defer tx.Rollback()

	for _, dv := range doc.Versions {
		if err := s.importVersion(tx, dv); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return catalogerr.E(op, catalogerr.Internal, err)
	}

	logger.Info().Int("versions", len(doc.Versions)).Str("metadata_version", probe.MetadataVersion).Msg("import complete")
	return nil
}

func majorVersion(v string) int {
	parts := strings.SplitN(v, ".", 2)
	n, err := strconv.Atoi(parts[0])
	if err != nil {
		return -1
	}
	return n
}

type txLike interface {
	Get(dest interface{}, query string, args ...interface{}) error
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func (s *Store) importVersion(tx txLike, dv docVersion) error {
	const op = catalogerr.Op("catalog.importVersion")

	if dv.UID == "" || dv.Volume == "" {
		return catalogerr.E(op, catalogerr.InputData, fmt.Errorf("version missing required fields"))
	}
	if _, err := ParseVersionUID(dv.UID); err != nil {
		return err
	}
	if err := validateName(op, "volume", dv.Volume); err != nil {
		return err
	}
	if err := validateName(op, "snapshot", dv.Snapshot); err != nil {
		return err
	}

	var existing int
	if err := tx.Get(&existing, `SELECT count(*) FROM versions WHERE uid = ?`, dv.UID); err != nil {
		return catalogerr.E(op, catalogerr.Internal, err)
	}
	if existing > 0 {
		return catalogerr.E(op, catalogerr.AlreadyExists, fmt.Errorf("version %q already exists", dv.UID))
	}

	var storageID int64
	if err := tx.Get(&storageID, `SELECT id FROM storages WHERE name = ?`, dv.Storage); errors.Is(err, sql.ErrNoRows) {
		return catalogerr.E(op, catalogerr.NotFound, fmt.Errorf("storage %q not found", dv.Storage))
	} else if err != nil {
		return catalogerr.E(op, catalogerr.Internal, err)
	}

	status, err := ParseStatus(dv.Status)
	if err != nil {
		return err
	}

	date, err := ParseTimestamp(dv.Date)
	if err != nil {
		return err
	}

	res, err := tx.Exec(`
		INSERT INTO versions (uid, date, volume, snapshot, size, block_size, storage_id, status, protected,
			bytes_read, bytes_written, bytes_deduplicated, bytes_sparse, duration)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		dv.UID, date, dv.Volume, dv.Snapshot, dv.Size, dv.BlockSize, storageID, status, dv.Protected,
		dv.BytesRead, dv.BytesWritten, dv.BytesDeduplicated, dv.BytesSparse, dv.Duration)
	if err != nil {
		return catalogerr.E(op, catalogerr.Internal, err)
	}
	versionID, err := res.LastInsertId()
	if err != nil {
		return catalogerr.E(op, catalogerr.Internal, err)
	}

	for name, value := range dv.Labels {
		if err := validateName(op, "label name", name); err != nil {
			return err
		}
		if err := validateName(op, "label value", value); err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT INTO labels (version_id, name, value) VALUES (?, ?, ?)`, versionID, name, value); err != nil {
			return catalogerr.E(op, catalogerr.Internal, err)
		}
	}

	for _, db := range dv.Blocks {
		uid := db.UID.toBlockUID()
		if !uid.Present {
			continue
		}
		var checksum []byte
		if db.Checksum != nil {
			checksum, err = ParseChecksumHex(*db.Checksum)
			if err != nil {
				return err
			}
		}
		left := int64(uid.Left)
		right := int64(uid.Right)
		if _, err := tx.Exec(`
			INSERT INTO blocks (version_id, idx, uid_left, uid_right, size, checksum, valid)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			versionID, db.Idx, left, right, db.Size, checksum, db.Valid); err != nil {
			return catalogerr.E(op, catalogerr.Internal, err)
		}
	}

	return nil
}

// v1 document shapes, renamed and reshaped by normalizeV1 before delegating
// to the v3 importer.
type importV1Document struct {
	MetadataVersion string            `json:"metadata_version"`
	Versions        []importV1Version `json:"versions"`
}

type importV1Version struct {
	UID          string           `json:"uid"`
	Date         string           `json:"date"`
	Name         string           `json:"name"`
	SnapshotName string           `json:"snapshot_name"`
	Size         int64            `json:"size"`
	BlockSize    int64            `json:"block_size"`
	StorageID    string           `json:"storage_id"`
	Status       string           `json:"status"`
	Protected    bool             `json:"protected"`
	BytesRead    *int64           `json:"bytes_read"`
	BytesWritten *int64           `json:"bytes_written"`
	BytesDedup   *int64           `json:"bytes_dedup"`
	BytesSparse  *int64           `json:"bytes_sparse"`
	Duration     *int64           `json:"duration"`
	Labels       []importV1Label  `json:"labels"`
	Blocks       []importV1Block  `json:"blocks"`
}

type importV1Label struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type importV1Block struct {
	ID       int64       `json:"id"`
	UID      docBlockUID `json:"uid"`
	Size     int64       `json:"size"`
	Checksum *string     `json:"checksum"`
	Valid    bool        `json:"valid"`
}

// normalizeV1 applies the v1->v3 attribute renames described by the
// reference: name->volume, snapshot_name->snapshot, storage_id->storage,
// bytes_dedup->bytes_deduplicated, block id->idx; labels list reshaped to a
// map; the numeric uid string reformatted as V{n:010d}; a 1.0.* minor
// version forces every statistic to null; a date without a trailing Z gets
// one appended.
func normalizeV1(raw []byte) (exportDocument, error) {
	var v1 importV1Document
	if err := json.Unmarshal(raw, &v1); err != nil {
		return exportDocument{}, fmt.Errorf("parse v1 document: %w", err)
	}

	isMinorZero := strings.HasPrefix(v1.MetadataVersion, "1.0.")

	doc := exportDocument{MetadataVersion: v1.MetadataVersion}
	for _, iv := range v1.Versions {
		n, err := strconv.ParseInt(iv.UID, 10, 64)
		if err != nil {
			return exportDocument{}, fmt.Errorf("v1 uid %q is not numeric: %w", iv.UID, err)
		}

		date := iv.Date
		if !strings.HasSuffix(date, "Z") {
			date += "Z"
		}

		dv := docVersion{
			UID:       string(FormatVersionUID(n)),
			Date:      date,
			Volume:    iv.Name,
			Snapshot:  iv.SnapshotName,
			Size:      iv.Size,
			BlockSize: iv.BlockSize,
			Storage:   iv.StorageID,
			Status:    iv.Status,
			Protected: iv.Protected,
			Labels:    make(map[string]string, len(iv.Labels)),
		}

		if isMinorZero {
			dv.BytesRead, dv.BytesWritten, dv.BytesDeduplicated, dv.BytesSparse, dv.Duration = nil, nil, nil, nil, nil
		} else {
			dv.BytesRead = iv.BytesRead
			dv.BytesWritten = iv.BytesWritten
			dv.BytesDeduplicated = iv.BytesDedup
			dv.BytesSparse = iv.BytesSparse
			dv.Duration = iv.Duration
		}

		for _, l := range iv.Labels {
			dv.Labels[l.Name] = l.Value
		}

		for _, b := range iv.Blocks {
			dv.Blocks = append(dv.Blocks, docBlock{
				Idx:      b.ID,
				UID:      b.UID,
				Size:     b.Size,
				Checksum: b.Checksum,
				Valid:    b.Valid,
			})
		}

		doc.Versions = append(doc.Versions, dv)
	}

	return doc, nil
}
