// Package vectorblob adapts a Qdrant collection into a storage.Provider,
// repointing the teacher's point/payload CRUD surface from vector
// similarity search to a content-addressed blob store. Qdrant has no
// native directory listing or prefix match, so List pays for a full
// collection scroll — documented here, not hidden. OpenRead and Exists
// fetch a single point by its URI-derived id.
package vectorblob

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/npipeline/npipeline/engine/storage"
	"github.com/npipeline/npipeline/pkg/pipe"
)

// Provider is a storage.Provider backed by a single Qdrant collection. One
// Provider owns its gRPC connection; Close releases it.
type Provider struct {
	conn       *grpc.ClientConn
	points     pb.PointsClient
	collection string
}

// New dials addr and returns a Provider over collection. EnsureCollection
// must be called once before first use; it is not called implicitly so
// that a read-only caller never has collection-creation side effects.
func New(addr, collection string) (*Provider, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("vectorblob: dial qdrant %s: %w", addr, err)
	}
	return &Provider{conn: conn, points: pb.NewPointsClient(conn), collection: collection}, nil
}

// Close releases the underlying gRPC connection.
func (p *Provider) Close() error { return p.conn.Close() }

// EnsureCollection creates the backing collection if it does not already
// exist. A single-element zero vector is the collection's vector config:
// no embedding step exists in this provider, so the vector carries no
// information and exists purely to satisfy Qdrant's point schema.
func (p *Provider) EnsureCollection(ctx context.Context) error {
	collections := pb.NewCollectionsClient(p.conn)
	list, err := collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return mapErr(storage.URI{}, err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == p.collection {
			return nil
		}
	}
	_, err = collections.Create(ctx, &pb.CreateCollection{
		CollectionName: p.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{Size: 1, Distance: pb.Distance_Cosine},
			},
		},
	})
	if err != nil {
		return mapErr(storage.URI{}, err)
	}
	return nil
}

func pointID(uri storage.URI) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(uri.String())).String()
}

func mapErr(uri storage.URI, err error) error {
	if err == nil {
		return nil
	}
	return &storage.ProviderError{URI: uri, Detail: "qdrant rpc failed", Err: err}
}

// blobRecord is the shape stored in a point's payload.
type blobRecord struct {
	uri         string
	data        []byte
	size        int64
	modifiedAt  time.Time
	contentType string
}

func (p *Provider) getRecord(ctx context.Context, uri storage.URI) (*blobRecord, error) {
	resp, err := p.points.Get(ctx, &pb.GetPoints{
		CollectionName: p.collection,
		Ids:            []*pb.PointId{{PointIdOptions: &pb.PointId_Uuid{Uuid: pointID(uri)}}},
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, mapErr(uri, err)
	}
	results := resp.GetResult()
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, uri)
	}
	return payloadToRecord(uri, results[0].GetPayload())
}

func payloadToRecord(uri storage.URI, payload map[string]*pb.Value) (*blobRecord, error) {
	raw := payload["data"].GetStringValue()
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, &storage.ProviderError{URI: uri, Detail: "corrupt base64 payload", Err: err}
	}
	rec := &blobRecord{
		uri:         uri.String(),
		data:        data,
		size:        payload["size"].GetIntegerValue(),
		contentType: payload["content_type"].GetStringValue(),
	}
	if ms := payload["modified_at_unix_ms"].GetIntegerValue(); ms != 0 {
		rec.modifiedAt = time.UnixMilli(ms)
	}
	return rec, nil
}

// OpenRead implements storage.Provider.
func (p *Provider) OpenRead(ctx context.Context, uri storage.URI) (io.ReadCloser, error) {
	rec, err := p.getRecord(ctx, uri)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(rec.data)), nil
}

// OpenWrite implements storage.Provider. The full blob is buffered in
// memory and upserted as a single point on Close — Qdrant has no
// streaming-write RPC, so this provider cannot honor large writes the way
// localfs can.
func (p *Provider) OpenWrite(ctx context.Context, uri storage.URI) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &blobWriter{ctx: ctx, provider: p, uri: uri}, nil
}

type blobWriter struct {
	ctx      context.Context
	provider *Provider
	uri      storage.URI
	buf      bytes.Buffer
}

func (w *blobWriter) Write(b []byte) (int, error) { return w.buf.Write(b) }

func (w *blobWriter) Close() error {
	payload := map[string]*pb.Value{
		"uri":                 {Kind: &pb.Value_StringValue{StringValue: w.uri.String()}},
		"data":                {Kind: &pb.Value_StringValue{StringValue: base64.StdEncoding.EncodeToString(w.buf.Bytes())}},
		"size":                {Kind: &pb.Value_IntegerValue{IntegerValue: int64(w.buf.Len())}},
		"modified_at_unix_ms": {Kind: &pb.Value_IntegerValue{IntegerValue: time.Now().UnixMilli()}},
	}
	wait := true
	_, err := w.provider.points.Upsert(w.ctx, &pb.UpsertPoints{
		CollectionName: w.provider.collection,
		Wait:           &wait,
		Points: []*pb.PointStruct{{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: pointID(w.uri)}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: []float32{0}}}},
			Payload: payload,
		}},
	})
	return mapErr(w.uri, err)
}

// Exists implements storage.Provider.
func (p *Provider) Exists(ctx context.Context, uri storage.URI) (bool, error) {
	_, err := p.getRecord(ctx, uri)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Metadata implements storage.Provider.
func (p *Provider) Metadata(ctx context.Context, uri storage.URI) (storage.Metadata, error) {
	rec, err := p.getRecord(ctx, uri)
	if err != nil {
		return storage.Metadata{}, err
	}
	return storage.Metadata{URI: uri, Size: rec.size, ModifiedAt: rec.modifiedAt, ContentType: rec.contentType}, nil
}

// List implements storage.Provider by scrolling the entire collection and
// filtering client-side on prefix — Qdrant has no native prefix match on
// a string payload field, and no hierarchy, so this is documented as
// O(collection size) and unsuitable for large buckets.
func (p *Provider) List(ctx context.Context, prefix storage.URI, recursive bool) (pipe.Pipe[storage.Item], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := storage.JoinPrefix(prefix.Path)

	var items []storage.Item
	var offset *pb.PointId
	for {
		resp, err := p.points.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: p.collection,
			Offset:         offset,
			Limit:          scrollPageSize(),
			WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		})
		if err != nil {
			return nil, mapErr(prefix, err)
		}
		for _, pt := range resp.GetResult() {
			rawURI := pt.GetPayload()["uri"].GetStringValue()
			itemURI, parseErr := storage.ParseURI(rawURI)
			if parseErr != nil {
				continue
			}
			if want != "" && !strings.HasPrefix(itemURI.Path, want) {
				continue
			}
			rec, recErr := payloadToRecord(itemURI, pt.GetPayload())
			if recErr != nil {
				continue
			}
			items = append(items, storage.Item{
				URI: itemURI,
				Metadata: storage.Metadata{
					URI: itemURI, Size: rec.size, ModifiedAt: rec.modifiedAt, ContentType: rec.contentType,
				},
			})
		}
		if resp.GetNextPageOffset() == nil {
			break
		}
		offset = resp.GetNextPageOffset()
	}
	storage.SortItems(items)
	return pipe.InMemory("vectorblob.List:"+prefix.Path, items), nil
}

func scrollPageSize() *uint32 {
	n := uint32(256)
	return &n
}

// Capabilities implements storage.Provider. Hierarchical is false: Qdrant
// has no directory concept, so List always returns a flat, prefix-filtered
// listing regardless of the recursive argument.
func (p *Provider) Capabilities() storage.Capabilities {
	return storage.Capabilities{Read: true, Write: true, Delete: true, List: true, Metadata: true, Hierarchical: false}
}

// Delete removes the point backing uri, if present.
func (p *Provider) Delete(ctx context.Context, uri storage.URI) error {
	wait := true
	_, err := p.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: p.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: []*pb.PointId{{PointIdOptions: &pb.PointId_Uuid{Uuid: pointID(uri)}}}},
			},
		},
	})
	return mapErr(uri, err)
}
