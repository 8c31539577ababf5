// Copyright 2025 ChatDocs
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


package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for the stored domain types. Written by hand in the
// generated style; the wire layout is a plain field-by-field concatenation.

var vectorMUS = ord.NewSliceSer[float32](raw.Float32)

// TimeMUS serializes a time.Time as Unix microseconds (0 for the zero time).
var TimeMUS = timeMUS{}

type timeMUS struct{}

func (s timeMUS) Marshal(v time.Time, bs []byte) (n int) {
	var us int64
	if !v.IsZero() {
		us = v.UnixMicro()
	}
	return varint.Int64.Marshal(us, bs)
}

func (s timeMUS) Unmarshal(bs []byte) (v time.Time, n int, err error) {
	us, n, err := varint.Int64.Unmarshal(bs)
	if err != nil || us == 0 {
		return time.Time{}, n, err
	}
	return time.UnixMicro(us).UTC(), n, nil
}

func (s timeMUS) Size(v time.Time) (size int) {
	var us int64
	if !v.IsZero() {
		us = v.UnixMicro()
	}
	return varint.Int64.Size(us)
}

func (s timeMUS) Skip(bs []byte) (n int, err error) {
	return varint.Int64.Skip(bs)
}

// TenantMUS serializes Tenant values.
var TenantMUS = tenantMUS{}

type tenantMUS struct{}

func (s tenantMUS) Marshal(v Tenant, bs []byte) (n int) {
	n = ord.String.Marshal(v.ClientID, bs)
	n += ord.String.Marshal(v.CompanyName, bs[n:])
	n += ord.String.Marshal(v.ContactEmail, bs[n:])
	n += varint.Int.Marshal(int(v.Plan), bs[n:])
	n += varint.Int.Marshal(int(v.Status), bs[n:])
	n += varint.Int64.Marshal(v.MaxDocuments, bs[n:])
	n += varint.Int64.Marshal(v.MaxMonthlyRequests, bs[n:])
	n += TimeMUS.Marshal(v.CreatedAt, bs[n:])
	n += TimeMUS.Marshal(v.LastActiveAt, bs[n:])
	return
}

func (s tenantMUS) Unmarshal(bs []byte) (v Tenant, n int, err error) {
	var n1 int
	v.ClientID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	v.CompanyName, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.ContactEmail, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var num int
	num, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Plan = PlanType(num)
	num, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Status = TenantStatus(num)
	v.MaxDocuments, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.MaxMonthlyRequests, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.CreatedAt, n1, err = TimeMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.LastActiveAt, n1, err = TimeMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (s tenantMUS) Size(v Tenant) (size int) {
	size = ord.String.Size(v.ClientID)
	size += ord.String.Size(v.CompanyName)
	size += ord.String.Size(v.ContactEmail)
	size += varint.Int.Size(int(v.Plan))
	size += varint.Int.Size(int(v.Status))
	size += varint.Int64.Size(v.MaxDocuments)
	size += varint.Int64.Size(v.MaxMonthlyRequests)
	size += TimeMUS.Size(v.CreatedAt)
	size += TimeMUS.Size(v.LastActiveAt)
	return
}

// ChunkMUS serializes stored Chunk values.
var ChunkMUS = chunkMUS{}

type chunkMUS struct{}

func (s chunkMUS) Marshal(v Chunk, bs []byte) (n int) {
	n = ord.String.Marshal(v.DocID, bs)
	n += varint.Int.Marshal(v.Ordinal, bs[n:])
	n += ord.String.Marshal(v.Text, bs[n:])
	n += vectorMUS.Marshal(v.Vector, bs[n:])
	n += varint.Uint64.Marshal(uint64(v.Hash), bs[n:])
	return
}

func (s chunkMUS) Unmarshal(bs []byte) (v Chunk, n int, err error) {
	var n1 int
	v.DocID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	v.Ordinal, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Text, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Vector, n1, err = vectorMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var hash uint64
	hash, n1, err = varint.Uint64.Unmarshal(bs[n:])
	n += n1
	v.Hash = ContentHash(hash)
	return
}

func (s chunkMUS) Size(v Chunk) (size int) {
	size = ord.String.Size(v.DocID)
	size += varint.Int.Size(v.Ordinal)
	size += ord.String.Size(v.Text)
	size += vectorMUS.Size(v.Vector)
	size += varint.Uint64.Size(uint64(v.Hash))
	return
}

// DocumentInfoMUS serializes document manifests.
var DocumentInfoMUS = documentInfoMUS{}

type documentInfoMUS struct{}

func (s documentInfoMUS) Marshal(v DocumentInfo, bs []byte) (n int) {
	n = ord.String.Marshal(v.DocID, bs)
	n += varint.Int.Marshal(v.ChunkCount, bs[n:])
	n += TimeMUS.Marshal(v.CreatedAt, bs[n:])
	n += TimeMUS.Marshal(v.UpdatedAt, bs[n:])
	return
}

func (s documentInfoMUS) Unmarshal(bs []byte) (v DocumentInfo, n int, err error) {
	var n1 int
	v.DocID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	v.ChunkCount, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.CreatedAt, n1, err = TimeMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.UpdatedAt, n1, err = TimeMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (s documentInfoMUS) Size(v DocumentInfo) (size int) {
	size = ord.String.Size(v.DocID)
	size += varint.Int.Size(v.ChunkCount)
	size += TimeMUS.Size(v.CreatedAt)
	size += TimeMUS.Size(v.UpdatedAt)
	return
}

// UsageCounterMUS serializes usage counters.
var UsageCounterMUS = usageCounterMUS{}

type usageCounterMUS struct{}

func (s usageCounterMUS) Marshal(v UsageCounter, bs []byte) (n int) {
	n = varint.Int64.Marshal(v.TotalRequests, bs)
	n += varint.Int64.Marshal(v.MonthRequests, bs[n:])
	n += varint.Int64.Marshal(v.TotalDocuments, bs[n:])
	n += varint.Int64.Marshal(v.DocumentCount, bs[n:])
	n += varint.Int64.Marshal(v.MonthDocuments, bs[n:])
	n += TimeMUS.Marshal(v.LastRequestAt, bs[n:])
	n += TimeMUS.Marshal(v.LastDocumentAt, bs[n:])
	n += TimeMUS.Marshal(v.MonthlyReset, bs[n:])
	return
}

func (s usageCounterMUS) Unmarshal(bs []byte) (v UsageCounter, n int, err error) {
	var n1 int
	v.TotalRequests, n, err = varint.Int64.Unmarshal(bs)
	if err != nil {
		return
	}
	v.MonthRequests, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.TotalDocuments, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.DocumentCount, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.MonthDocuments, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.LastRequestAt, n1, err = TimeMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.LastDocumentAt, n1, err = TimeMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.MonthlyReset, n1, err = TimeMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (s usageCounterMUS) Size(v UsageCounter) (size int) {
	size = varint.Int64.Size(v.TotalRequests)
	size += varint.Int64.Size(v.MonthRequests)
	size += varint.Int64.Size(v.TotalDocuments)
	size += varint.Int64.Size(v.DocumentCount)
	size += varint.Int64.Size(v.MonthDocuments)
	size += TimeMUS.Size(v.LastRequestAt)
	size += TimeMUS.Size(v.LastDocumentAt)
	size += TimeMUS.Size(v.MonthlyReset)
	return
}
