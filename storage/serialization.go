// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/runbooks/core"
)

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, varint.Uint64.Size(uint64(id)))
	varint.Uint64.Marshal(uint64(id), buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	v, _, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return core.ID(v), nil
}

// MarshalRunbook serializes a Runbook to bytes.
func MarshalRunbook(rb *core.Runbook) []byte {
	buf := make([]byte, runbookMUS.Size(rb))
	runbookMUS.Marshal(rb, buf)
	return buf
}

// UnmarshalRunbook deserializes a Runbook from bytes.
func UnmarshalRunbook(data []byte) (*core.Runbook, error) {
	rb, _, err := runbookMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: runbook: %w", ErrSerializationFailed, err)
	}
	return rb, nil
}

// MarshalChunk serializes a Chunk to bytes.
func MarshalChunk(c *core.Chunk) []byte {
	buf := make([]byte, chunkMUS.Size(c))
	chunkMUS.Marshal(c, buf)
	return buf
}

// UnmarshalChunk deserializes a Chunk from bytes.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	c, _, err := chunkMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: chunk: %w", ErrSerializationFailed, err)
	}
	return c, nil
}

var (
	runbookMUS = runbookSer{}
	chunkMUS   = chunkSer{}
)

// Field order is the wire format. Append new fields at the end only.
type runbookSer struct{}

func (runbookSer) Marshal(rb *core.Runbook, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(rb.Id), bs)
	n += ord.String.Marshal(rb.Metadata.Title, bs[n:])
	n += ord.String.Marshal(rb.Metadata.Author, bs[n:])
	n += timeMUS.Marshal(rb.Metadata.LastModified, bs[n:])
	n += ord.String.Marshal(rb.Metadata.SpaceKey, bs[n:])
	n += ord.String.Marshal(rb.Metadata.PageID, bs[n:])
	n += ord.String.Marshal(rb.Metadata.PageURL, bs[n:])
	n += stringsMUS.Marshal(rb.Metadata.Tags, bs[n:])
	n += stringsMUS.Marshal(rb.Procedures, bs[n:])
	n += stringsMUS.Marshal(rb.TroubleshootingSteps, bs[n:])
	n += stringsMUS.Marshal(rb.Prerequisites, bs[n:])
	n += ord.String.Marshal(rb.RawContent, bs[n:])
	n += sectionsMUS.Marshal(rb.Sections, bs[n:])
	n += timeMUS.Marshal(rb.InsertedAt, bs[n:])
	n += timeMUS.Marshal(rb.UpdatedAt, bs[n:])
	return
}

func (runbookSer) Unmarshal(bs []byte) (rb *core.Runbook, n int, err error) {
	rb = &core.Runbook{}
	dec := decoder{bs: bs}
	var id uint64
	dec.uint64(&id)
	rb.Id = core.ID(id)
	dec.str(&rb.Metadata.Title)
	dec.str(&rb.Metadata.Author)
	dec.time(&rb.Metadata.LastModified)
	dec.str(&rb.Metadata.SpaceKey)
	dec.str(&rb.Metadata.PageID)
	dec.str(&rb.Metadata.PageURL)
	dec.strs(&rb.Metadata.Tags)
	dec.strs(&rb.Procedures)
	dec.strs(&rb.TroubleshootingSteps)
	dec.strs(&rb.Prerequisites)
	dec.str(&rb.RawContent)
	dec.sections(&rb.Sections)
	dec.time(&rb.InsertedAt)
	dec.time(&rb.UpdatedAt)
	if dec.err != nil {
		return nil, dec.n, dec.err
	}
	return rb, dec.n, nil
}

func (runbookSer) Size(rb *core.Runbook) (size int) {
	size = varint.Uint64.Size(uint64(rb.Id))
	size += ord.String.Size(rb.Metadata.Title)
	size += ord.String.Size(rb.Metadata.Author)
	size += timeMUS.Size(rb.Metadata.LastModified)
	size += ord.String.Size(rb.Metadata.SpaceKey)
	size += ord.String.Size(rb.Metadata.PageID)
	size += ord.String.Size(rb.Metadata.PageURL)
	size += stringsMUS.Size(rb.Metadata.Tags)
	size += stringsMUS.Size(rb.Procedures)
	size += stringsMUS.Size(rb.TroubleshootingSteps)
	size += stringsMUS.Size(rb.Prerequisites)
	size += ord.String.Size(rb.RawContent)
	size += sectionsMUS.Size(rb.Sections)
	size += timeMUS.Size(rb.InsertedAt)
	size += timeMUS.Size(rb.UpdatedAt)
	return
}

type chunkSer struct{}

func (chunkSer) Marshal(c *core.Chunk, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(c.Id), bs)
	n += varint.Uint64.Marshal(uint64(c.RunbookId), bs[n:])
	n += varint.Int.Marshal(c.Index, bs[n:])
	n += ord.String.Marshal(c.Content, bs[n:])
	n += vectorMUS.Marshal(c.Vector, bs[n:])
	return
}

func (chunkSer) Unmarshal(bs []byte) (c *core.Chunk, n int, err error) {
	c = &core.Chunk{}
	dec := decoder{bs: bs}
	var id, runbookID uint64
	dec.uint64(&id)
	dec.uint64(&runbookID)
	dec.int(&c.Index)
	dec.str(&c.Content)
	dec.vector(&c.Vector)
	if dec.err != nil {
		return nil, dec.n, dec.err
	}
	c.Id = core.ID(id)
	c.RunbookId = core.ID(runbookID)
	return c, dec.n, nil
}

func (chunkSer) Size(c *core.Chunk) (size int) {
	size = varint.Uint64.Size(uint64(c.Id))
	size += varint.Uint64.Size(uint64(c.RunbookId))
	size += varint.Int.Size(c.Index)
	size += ord.String.Size(c.Content)
	size += vectorMUS.Size(c.Vector)
	return
}

// Timestamps are stored as Unix microseconds; the zero time is stored as 0.
var timeMUS = timeSer{}

type timeSer struct{}

func (timeSer) micros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func (s timeSer) Marshal(t time.Time, bs []byte) int {
	return varint.Int64.Marshal(s.micros(t), bs)
}

func (timeSer) Unmarshal(bs []byte) (time.Time, int, error) {
	v, n, err := varint.Int64.Unmarshal(bs)
	if err != nil || v == 0 {
		return time.Time{}, n, err
	}
	return time.UnixMicro(v).UTC(), n, nil
}

func (s timeSer) Size(t time.Time) int {
	return varint.Int64.Size(s.micros(t))
}

// Slices are length-prefixed; nil and empty slices both encode as length 0.
var stringsMUS = stringsSer{}

type stringsSer struct{}

func (stringsSer) Marshal(v []string, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, s := range v {
		n += ord.String.Marshal(s, bs[n:])
	}
	return
}

func (stringsSer) Size(v []string) (size int) {
	size = varint.Int.Size(len(v))
	for _, s := range v {
		size += ord.String.Size(s)
	}
	return
}

// Sections are written in key order so identical runbooks encode identically.
var sectionsMUS = sectionsSer{}

type sectionsSer struct{}

func (sectionsSer) Marshal(m map[string]string, bs []byte) (n int) {
	n = varint.Int.Marshal(len(m), bs)
	for _, k := range sortedKeys(m) {
		n += ord.String.Marshal(k, bs[n:])
		n += ord.String.Marshal(m[k], bs[n:])
	}
	return
}

func (sectionsSer) Size(m map[string]string) (size int) {
	size = varint.Int.Size(len(m))
	for k, v := range m {
		size += ord.String.Size(k) + ord.String.Size(v)
	}
	return
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

var vectorMUS = vectorSer{}

type vectorSer struct{}

func (vectorSer) Marshal(v []float32, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, f := range v {
		n += varint.Uint32.Marshal(math.Float32bits(f), bs[n:])
	}
	return
}

func (vectorSer) Size(v []float32) (size int) {
	size = varint.Int.Size(len(v))
	for _, f := range v {
		size += varint.Uint32.Size(math.Float32bits(f))
	}
	return
}

// decoder threads the offset and first error through a sequence of reads.
type decoder struct {
	bs  []byte
	n   int
	err error
}

func (d *decoder) str(dst *string) {
	if d.err != nil {
		return
	}
	v, n, err := ord.String.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	*dst = v
}

func (d *decoder) uint64(dst *uint64) {
	if d.err != nil {
		return
	}
	v, n, err := varint.Uint64.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	*dst = v
}

func (d *decoder) int(dst *int) {
	if d.err != nil {
		return
	}
	v, n, err := varint.Int.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	*dst = v
}

func (d *decoder) time(dst *time.Time) {
	if d.err != nil {
		return
	}
	v, n, err := timeMUS.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	*dst = v
}

func (d *decoder) length() int {
	var l int
	d.int(&l)
	if d.err == nil && (l < 0 || l > len(d.bs)-d.n) {
		d.err = ErrTruncatedData
	}
	return l
}

func (d *decoder) strs(dst *[]string) {
	l := d.length()
	if d.err != nil || l == 0 {
		return
	}
	out := make([]string, l)
	for i := range out {
		d.str(&out[i])
	}
	*dst = out
}

func (d *decoder) sections(dst *map[string]string) {
	l := d.length()
	if d.err != nil || l == 0 {
		return
	}
	out := make(map[string]string, l)
	for range l {
		var k, v string
		d.str(&k)
		d.str(&v)
		out[k] = v
	}
	*dst = out
}

func (d *decoder) vector(dst *[]float32) {
	l := d.length()
	if d.err != nil || l == 0 {
		return
	}
	out := make([]float32, l)
	for i := range out {
		if d.err != nil {
			return
		}
		v, n, err := varint.Uint32.Unmarshal(d.bs[d.n:])
		d.n += n
		d.err = err
		out[i] = math.Float32frombits(v)
	}
	*dst = out
}
