// Package weaviate provides a driven.VectorStore backed by a remote Weaviate
// instance. A collection maps to a Weaviate class with vectorizer "none";
// vectors always come from the configured embedding provider.
package weaviate

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/custodia-labs/finrag/internal/adapters/driven/storage/vecstore"
	"github.com/custodia-labs/finrag/internal/core/domain"
	"github.com/custodia-labs/finrag/internal/core/ports/driven"
	"github.com/custodia-labs/finrag/internal/logger"
)

var _ driven.VectorStore = (*VectorStore)(nil)

// Default configuration values.
const (
	DefaultURL       = "http://localhost:8080"
	DefaultBatchSize = 200
	pageSize         = 500
)

// Property names owned by the adapter.
const (
	propRecordID = "record_id"
	propContent  = "content"
	propMetadata = "metadata_json"
)

// tokenizeField indexes a text property as one token so Like matches
// substrings of the whole value and Equal matches the exact value.
const tokenizeField = "field"

// idNamespace seeds the UUIDv5 mapping from record ids to Weaviate object ids.
var idNamespace = uuid.MustParse("6f1c2b3e-8d4a-5e7f-9a0b-1c2d3e4f5a6b")

// propertyName matches metadata keys that are valid GraphQL property names.
var propertyName = regexp.MustCompile(`^[_A-Za-z][_0-9A-Za-z]*$`)

// Config holds connection settings.
type Config struct {
	// URL is the Weaviate endpoint including scheme (default: http://localhost:8080).
	URL string

	// APIKey authenticates against Weaviate Cloud. Optional.
	APIKey string

	// Collection is the logical collection name; it is mapped to a class name.
	Collection string

	// BatchSize is the maximum number of objects per batch request (default: 200).
	BatchSize int
}

// VectorStore implements driven.VectorStore on one Weaviate class.
type VectorStore struct {
	client     *weaviate.Client
	collection string
	class      string
	batchSize  int

	mu        sync.Mutex
	dimension int
}

// NewVectorStore connects to Weaviate and creates the class if needed.
func NewVectorStore(ctx context.Context, cfg Config) (*VectorStore, error) {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Collection == "" {
		cfg.Collection = domain.DefaultCollection
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	scheme := "http"
	if strings.HasPrefix(cfg.URL, "https://") {
		scheme = "https"
	}
	host := strings.TrimSuffix(strings.TrimPrefix(cfg.URL, scheme+"://"), "/")

	wcfg := weaviate.Config{
		Host:   host,
		Scheme: scheme,
	}
	if cfg.APIKey != "" {
		wcfg.AuthConfig = auth.ApiKey{Value: cfg.APIKey}
	}

	client, err := weaviate.NewClient(wcfg)
	if err != nil {
		return nil, fmt.Errorf("%w: weaviate: %w", domain.ErrStoreUnavailable, err)
	}

	s := &VectorStore{
		client:     client,
		collection: cfg.Collection,
		class:      ClassName(cfg.Collection),
		batchSize:  cfg.BatchSize,
	}
	if err := s.ensureClass(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return s, nil
}

// ClassName maps a collection name to a Weaviate class name, which must
// start with an upper-case letter and contain only letters and digits.
// "financial_documents" becomes "FinancialDocuments".
func ClassName(collection string) string {
	parts := strings.FieldsFunc(collection, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var b strings.Builder
	for _, part := range parts {
		runes := []rune(part)
		b.WriteRune(unicode.ToUpper(runes[0]))
		b.WriteString(string(runes[1:]))
	}
	name := b.String()
	if name == "" || !unicode.IsLetter([]rune(name)[0]) {
		name = "C" + name
	}
	return name
}

// ObjectID maps a record id to its deterministic Weaviate UUID.
func ObjectID(collection, id string) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(idNamespace, []byte(collection+"/"+id)).String())
}

func (s *VectorStore) classDefinition() *models.Class {
	text := []string{"text"}
	exact := func(name string) *models.Property {
		return &models.Property{Name: name, DataType: text, Tokenization: tokenizeField}
	}
	return &models.Class{
		Class:       s.class,
		Description: "finrag collection " + s.collection,
		Vectorizer:  "none",
		Properties: []*models.Property{
			exact(propRecordID),
			exact(propContent),
			{Name: propMetadata, DataType: text},
			exact(domain.MetaSource),
			exact(domain.MetaURL),
			{Name: domain.MetaTitle, DataType: text},
			exact(domain.MetaFilename),
			exact(domain.MetaType),
			exact(domain.MetaDate),
			exact(domain.MetaTicker),
			exact(domain.MetaFormType),
			{Name: domain.MetaChunkIndex, DataType: []string{"int"}},
		},
	}
}

func (s *VectorStore) ensureClass(ctx context.Context) error {
	exists, err := s.client.Schema().ClassExistenceChecker().WithClassName(s.class).Do(ctx)
	if err != nil {
		return fmt.Errorf("checking class %s: %w", s.class, err)
	}
	if exists {
		return nil
	}
	if err := s.client.Schema().ClassCreator().WithClass(s.classDefinition()).Do(ctx); err != nil {
		return fmt.Errorf("creating class %s: %w", s.class, err)
	}
	logger.Debug("weaviate: created class %s", s.class)
	return nil
}

// Add stores chunks in batches. Deterministic object ids make re-adding an
// id replace the earlier object.
func (s *VectorStore) Add(
	ctx context.Context,
	chunks []domain.Chunk,
	embeddings [][]float32,
	ids []string,
) ([]string, error) {
	dim, err := vecstore.ValidateAdd(chunks, embeddings, ids)
	if err != nil {
		return nil, err
	}
	if err := s.checkDimension(ctx, dim); err != nil {
		return nil, err
	}
	ids = vecstore.ResolveIDs(len(chunks), ids)

	for start := 0; start < len(chunks); start += s.batchSize {
		end := min(start+s.batchSize, len(chunks))

		batcher := s.client.Batch().ObjectsBatcher()
		for i := start; i < end; i++ {
			props, err := properties(ids[i], chunks[i])
			if err != nil {
				return nil, err
			}
			batcher = batcher.WithObjects(&models.Object{
				Class:      s.class,
				ID:         ObjectID(s.collection, ids[i]),
				Properties: props,
				Vector:     embeddings[i],
			})
		}

		resp, err := batcher.Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: weaviate batch %d-%d: %w", domain.ErrStore, start, end, err)
		}
		if err := batchError(resp); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	s.dimension = dim
	s.mu.Unlock()

	return append([]string(nil), ids...), nil
}

// QueryByEmbedding runs a nearVector search with the translated filters.
// Weaviate reports cosine distance, matching the other backends.
func (s *VectorStore) QueryByEmbedding(
	ctx context.Context,
	vector []float32,
	n int,
	where domain.Where,
	whereDoc *domain.DocumentWhere,
) ([]domain.Hit, error) {
	if err := vecstore.ValidateQuery(vector, n); err != nil {
		return nil, err
	}
	if err := s.checkDimension(ctx, len(vector)); err != nil {
		return nil, err
	}

	filter, err := Filter(where, whereDoc)
	if err != nil {
		return nil, err
	}

	get := s.client.GraphQL().Get().
		WithClassName(s.class).
		WithFields(recordFields(graphql.Field{Name: "distance"})...).
		WithNearVector(s.client.GraphQL().NearVectorArgBuilder().WithVector(vector)).
		WithLimit(n)
	if filter != nil {
		get = get.WithWhere(filter)
	}

	resp, err := get.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: weaviate search: %w", domain.ErrStore, err)
	}
	rows, err := s.rows(resp)
	if err != nil {
		return nil, err
	}

	hits := make([]domain.Hit, 0, len(rows))
	for _, row := range rows {
		rec, extra, err := decodeRecord(row)
		if err != nil {
			return nil, err
		}
		distance, _ := extra["distance"].(float64)
		hits = append(hits, domain.Hit{Record: rec, Distance: distance})
	}
	return matchingContent(hits, whereDoc), nil
}

// matchingContent drops hits whose text does not contain the substring.
// Classes created with word tokenization answer Like per token, which
// admits chunks where the words appear apart.
func matchingContent(hits []domain.Hit, whereDoc *domain.DocumentWhere) []domain.Hit {
	if whereDoc == nil {
		return hits
	}
	kept := hits[:0]
	for _, hit := range hits {
		if whereDoc.Match(hit.Record.Content) {
			kept = append(kept, hit)
		}
	}
	return kept
}

// GetByIDs returns the records for ids that exist, in ids order.
func (s *VectorStore) GetByIDs(ctx context.Context, ids []string) ([]domain.Record, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no ids given", domain.ErrStore)
	}

	resp, err := s.client.GraphQL().Get().
		WithClassName(s.class).
		WithFields(recordFields(graphql.Field{Name: "vector"})...).
		WithWhere(idFilter(ids)).
		WithLimit(len(ids)).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: weaviate get: %w", domain.ErrStore, err)
	}
	records, err := s.records(resp)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domain.Record, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}
	out := make([]domain.Record, 0, len(records))
	for _, id := range ids {
		if rec, ok := byID[id]; ok {
			out = append(out, rec)
			delete(byID, id)
		}
	}
	return out, nil
}

// GetAll pages through the class with the cursor API.
func (s *VectorStore) GetAll(ctx context.Context) ([]domain.Record, error) {
	all := []domain.Record{}
	after := ""
	for {
		get := s.client.GraphQL().Get().
			WithClassName(s.class).
			WithFields(recordFields(graphql.Field{Name: "vector"})...).
			WithLimit(pageSize)
		if after != "" {
			get = get.WithAfter(after)
		}

		resp, err := get.Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: weaviate list: %w", domain.ErrStore, err)
		}
		rows, err := s.rows(resp)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			rec, extra, err := decodeRecord(row)
			if err != nil {
				return nil, err
			}
			all = append(all, rec)
			after, _ = extra["id"].(string)
		}
		if len(rows) < pageSize {
			return all, nil
		}
	}
}

// Count aggregates the object count of the class.
func (s *VectorStore) Count(ctx context.Context) (int, error) {
	resp, err := s.client.GraphQL().Aggregate().
		WithClassName(s.class).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: weaviate count: %w", domain.ErrStore, err)
	}
	if len(resp.Errors) > 0 {
		return 0, fmt.Errorf("%w: weaviate count: %s", domain.ErrStore, resp.Errors[0].Message)
	}
	return aggregateCount(resp.Data, s.class), nil
}

// Delete removes records by ids or by metadata predicate.
func (s *VectorStore) Delete(ctx context.Context, ids []string, where domain.Where) (int, error) {
	if err := vecstore.ValidateDelete(ids, where); err != nil {
		return 0, err
	}

	filter := idFilter(ids)
	if len(ids) == 0 {
		var err error
		if filter, err = Filter(where, nil); err != nil {
			return 0, err
		}
		if filter == nil {
			return 0, fmt.Errorf("%w: empty delete predicate", domain.ErrStore)
		}
	}

	resp, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(s.class).
		WithWhere(filter).
		WithOutput("minimal").
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: weaviate delete: %w", domain.ErrStore, err)
	}
	if resp == nil || resp.Results == nil {
		return 0, nil
	}
	return int(resp.Results.Successful), nil
}

// DeleteCollection drops the class.
func (s *VectorStore) DeleteCollection(ctx context.Context) error {
	if err := s.client.Schema().ClassDeleter().WithClassName(s.class).Do(ctx); err != nil {
		return fmt.Errorf("%w: weaviate drop class: %w", domain.ErrStore, err)
	}
	s.mu.Lock()
	s.dimension = 0
	s.mu.Unlock()
	return nil
}

// Reset drops and recreates the class.
func (s *VectorStore) Reset(ctx context.Context) error {
	if err := s.DeleteCollection(ctx); err != nil {
		return err
	}
	if err := s.ensureClass(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStore, err)
	}
	return nil
}

// Name returns the collection name.
func (s *VectorStore) Name() string {
	return s.collection
}

// Close is a no-op; the client holds no persistent connection.
func (s *VectorStore) Close() error {
	return nil
}

// checkDimension compares got with the dimension of the stored vectors,
// learning it from one stored object on first use.
func (s *VectorStore) checkDimension(ctx context.Context, got int) error {
	s.mu.Lock()
	dim := s.dimension
	s.mu.Unlock()

	if dim == 0 {
		resp, err := s.client.GraphQL().Get().
			WithClassName(s.class).
			WithFields(graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "vector"}}}).
			WithLimit(1).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("%w: weaviate dimension lookup: %w", domain.ErrStore, err)
		}
		rows, err := s.rows(resp)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		additional, _ := rows[0]["_additional"].(map[string]any)
		dim = len(toFloat32s(additional["vector"]))

		s.mu.Lock()
		s.dimension = dim
		s.mu.Unlock()
	}
	return vecstore.CheckDimension(dim, got)
}

func (s *VectorStore) rows(resp *models.GraphQLResponse) ([]map[string]any, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: weaviate: empty response", domain.ErrStore)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("%w: weaviate: %s", domain.ErrStore, resp.Errors[0].Message)
	}
	return classRows(resp.Data, s.class), nil
}

func (s *VectorStore) records(resp *models.GraphQLResponse) ([]domain.Record, error) {
	rows, err := s.rows(resp)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		rec, _, err := decodeRecord(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// properties flattens a chunk into object properties. Metadata keys that are
// valid property names are stored as properties so they can be filtered on;
// the full metadata is also kept as JSON for exact reads.
func properties(id string, chunk domain.Chunk) (map[string]any, error) {
	encoded, err := json.Marshal(chunk.Metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: marshalling metadata: %w", domain.ErrStore, err)
	}
	props := map[string]any{
		propRecordID: id,
		propContent:  chunk.Content,
		propMetadata: string(encoded),
	}
	for key, value := range chunk.Metadata {
		if _, reserved := props[key]; reserved || key == "id" || !propertyName.MatchString(key) {
			continue
		}
		props[key] = value
	}
	return props, nil
}

// recordFields selects the adapter properties plus the given _additional fields.
func recordFields(additional ...graphql.Field) []graphql.Field {
	return []graphql.Field{
		{Name: propRecordID},
		{Name: propContent},
		{Name: propMetadata},
		{Name: "_additional", Fields: append([]graphql.Field{{Name: "id"}}, additional...)},
	}
}

// classRows extracts Get.<class> from a GraphQL response payload.
func classRows(data map[string]models.JSONObject, class string) []map[string]any {
	get, ok := data["Get"].(map[string]any)
	if !ok {
		return nil
	}
	items, ok := get[class].([]any)
	if !ok {
		return nil
	}
	rows := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if row, ok := item.(map[string]any); ok {
			rows = append(rows, row)
		}
	}
	return rows
}

// aggregateCount extracts Aggregate.<class>[0].meta.count.
func aggregateCount(data map[string]models.JSONObject, class string) int {
	agg, ok := data["Aggregate"].(map[string]any)
	if !ok {
		return 0
	}
	items, ok := agg[class].([]any)
	if !ok || len(items) == 0 {
		return 0
	}
	first, _ := items[0].(map[string]any)
	meta, _ := first["meta"].(map[string]any)
	count, _ := meta["count"].(float64)
	return int(count)
}

// decodeRecord converts one GraphQL row and returns its _additional block.
func decodeRecord(row map[string]any) (domain.Record, map[string]any, error) {
	rec := domain.Record{
		ID:       stringProp(row, propRecordID),
		Content:  stringProp(row, propContent),
		Metadata: domain.Metadata{},
	}
	if raw := stringProp(row, propMetadata); raw != "" {
		if err := json.Unmarshal([]byte(raw), &rec.Metadata); err != nil {
			return domain.Record{}, nil, fmt.Errorf("%w: unmarshalling metadata for %s: %w",
				domain.ErrStore, rec.ID, err)
		}
	}
	additional, _ := row["_additional"].(map[string]any)
	rec.Embedding = toFloat32s(additional["vector"])
	return rec, additional, nil
}

func stringProp(row map[string]any, key string) string {
	s, _ := row[key].(string)
	return s
}

func toFloat32s(v any) []float32 {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]float32, 0, len(items))
	for _, item := range items {
		if f, ok := item.(float64); ok {
			out = append(out, float32(f))
		}
	}
	return out
}

func batchError(resp []models.ObjectsGetResponse) error {
	for _, obj := range resp {
		if obj.Result == nil || obj.Result.Errors == nil {
			continue
		}
		for _, item := range obj.Result.Errors.Error {
			if item != nil {
				return fmt.Errorf("%w: weaviate object %s: %s", domain.ErrStore, obj.ID, item.Message)
			}
		}
	}
	return nil
}
