// Copyright 2026 Blink Labs Software
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

package substrate

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/blinklabs-io/arbiter/xcm"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
)

// RuntimeVersion is the subset of state_getRuntimeVersion the resolver reads
type RuntimeVersion struct {
	SpecName    string `json:"specName"`
	SpecVersion uint32 `json:"specVersion"`
}

// RuntimeResolver resolves call indexes from the live runtime metadata of a
// node. Metadata is cached per spec version. Any failure to reach the node
// or decode its metadata is reported as xcm.ErrCodecUnavailable.
type RuntimeResolver struct {
	client     *Client
	xcmVersion uint32

	mu          sync.Mutex
	specVersion uint32
	metadata    *types.Metadata
}

// NewRuntimeResolver returns a resolver that reports xcmVersion once the
// node is reachable
func NewRuntimeResolver(client *Client, xcmVersion uint32) *RuntimeResolver {
	if xcmVersion == 0 {
		xcmVersion = 3
	}
	return &RuntimeResolver{client: client, xcmVersion: xcmVersion}
}

// RuntimeVersion queries the node runtime version
func (r *RuntimeResolver) RuntimeVersion(ctx context.Context) (RuntimeVersion, error) {
	var version RuntimeVersion
	if err := r.client.Call(ctx, "state_getRuntimeVersion", &version); err != nil {
		return RuntimeVersion{}, fmt.Errorf("%w: %w", xcm.ErrCodecUnavailable, err)
	}
	return version, nil
}

func (r *RuntimeResolver) XcmVersion(ctx context.Context) (uint32, error) {
	if _, err := r.RuntimeVersion(ctx); err != nil {
		return 0, err
	}
	return r.xcmVersion, nil
}

// CallIndex looks up pallet.call, for example System.remark_with_event
func (r *RuntimeResolver) CallIndex(ctx context.Context, pallet string, call string) (xcm.CallIndex, error) {
	meta, err := r.loadMetadata(ctx)
	if err != nil {
		return xcm.CallIndex{}, err
	}
	idx, err := meta.FindCallIndex(pallet + "." + call)
	if err != nil {
		return xcm.CallIndex{}, fmt.Errorf("%w: %w", xcm.ErrCodecUnavailable, err)
	}
	return xcm.CallIndex{idx.SectionIndex, idx.MethodIndex}, nil
}

func (r *RuntimeResolver) loadMetadata(ctx context.Context) (*types.Metadata, error) {
	version, err := r.RuntimeVersion(ctx)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.metadata != nil && r.specVersion == version.SpecVersion {
		return r.metadata, nil
	}
	var metaHex string
	if err := r.client.Call(ctx, "state_getMetadata", &metaHex); err != nil {
		return nil, fmt.Errorf("%w: %w", xcm.ErrCodecUnavailable, err)
	}
	if !strings.HasPrefix(metaHex, "0x") {
		return nil, fmt.Errorf("%w: metadata is not hex", xcm.ErrCodecUnavailable)
	}
	var meta types.Metadata
	if err := codec.DecodeFromHex(metaHex, &meta); err != nil {
		return nil, fmt.Errorf("%w: decode metadata: %w", xcm.ErrCodecUnavailable, err)
	}
	r.metadata = &meta
	r.specVersion = version.SpecVersion
	return r.metadata, nil
}

// FallbackResolver consults a primary resolver and falls back to a static
// table for call indexes when the primary cannot answer. Version checks are
// never faked, so an unreachable node still surfaces ErrCodecUnavailable.
type FallbackResolver struct {
	Primary  xcm.Resolver
	Fallback *xcm.StaticResolver
}

func (f FallbackResolver) XcmVersion(ctx context.Context) (uint32, error) {
	return f.Primary.XcmVersion(ctx)
}

func (f FallbackResolver) CallIndex(ctx context.Context, pallet string, call string) (xcm.CallIndex, error) {
	idx, err := f.Primary.CallIndex(ctx, pallet, call)
	if err == nil || f.Fallback == nil {
		return idx, err
	}
	if _, verr := f.Primary.XcmVersion(ctx); verr != nil {
		return xcm.CallIndex{}, verr
	}
	return f.Fallback.CallIndex(ctx, pallet, call)
}
