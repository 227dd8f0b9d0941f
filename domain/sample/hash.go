package sample

import (
	"bytes"
	"encoding/binary"
	"math"

	"gocre/domain/core"
)

// Hash digests the full observation set: dimensions, column names, and every
// numeric cell in order. Two runs over byte-identical data hash identically,
// which anchors the replay fingerprint.
func (o *Observations) Hash() core.DatasetHash {
	var b bytes.Buffer
	buf := make([]byte, 8)

	writeInt := func(v int) {
		binary.LittleEndian.PutUint64(buf, uint64(v))
		b.Write(buf)
	}
	writeFloat := func(v float64) {
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
		b.Write(buf)
	}

	writeInt(o.Covariates.RowCount())
	writeInt(o.Covariates.ColumnCount())
	for j, name := range o.Covariates.Names {
		b.WriteString(name)
		b.WriteByte(0)
		for _, v := range o.Covariates.Cols[j] {
			writeFloat(v)
		}
	}
	for _, v := range o.Outcome {
		writeFloat(v)
	}
	for _, z := range o.Treatment {
		writeInt(z)
	}
	writeInt(len(o.ITE))
	for _, v := range o.ITE {
		writeFloat(v)
	}

	return core.NewDatasetHash(b.Bytes())
}
