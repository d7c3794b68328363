// Package mongo - адаптер MongoDB на официальном mongo-driver.
// SQL здесь нет: поверхность Query принимает JSON описание выборки,
// структурированные записи работают через InsertOne/InsertMany/
// UpdateMany, идентичность вставленных документов восстанавливается
// по InsertedIDs.
package mongo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/toonlabs/toondb/pkg/adapters"
	"github.com/toonlabs/toondb/pkg/core/coerce"
	"github.com/toonlabs/toondb/pkg/core/record"
	"github.com/toonlabs/toondb/pkg/core/toon"
	"github.com/toonlabs/toondb/pkg/stats"
)

func init() {
	adapters.Register("mongo", func() adapters.Adapter {
		return &Adapter{}
	})
}

// schemaSampleSize - сколько документов читается для вывода схемы коллекции
const schemaSampleSize = 100

// Adapter - адаптер MongoDB
type Adapter struct {
	cfg    adapters.Config
	client *mongo.Client
	db     *mongo.Database
	owned  bool

	codec toon.Codec
	stats *stats.SessionStats
	sink  io.Closer
}

// Connect открывает подключение к MongoDB.
// DSN - URI вида "mongodb://host:port"; Database обязателен.
func (a *Adapter) Connect(ctx context.Context, cfg adapters.Config) error {
	uri := cfg.DSN
	if uri == "" {
		if cfg.Host == "" {
			return fmt.Errorf("%w: mongo requires dsn or host", adapters.ErrConnection)
		}
		port := cfg.Port
		if port == 0 {
			port = 27017
		}
		if cfg.User != "" {
			uri = fmt.Sprintf("mongodb://%s:%s@%s:%d", cfg.User, cfg.Password, cfg.Host, port)
		} else {
			uri = fmt.Sprintf("mongodb://%s:%d", cfg.Host, port)
		}
	}
	if cfg.Database == "" {
		return fmt.Errorf("%w: mongo requires a database name", adapters.ErrConnection)
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return fmt.Errorf("%w: %v", adapters.ErrConnection, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return fmt.Errorf("%w: %v", adapters.ErrConnection, err)
	}

	return a.init(cfg, client, true)
}

// NewWithClient создает адаптер поверх заимствованного клиента.
// Close такого адаптера клиент не отключает.
func NewWithClient(cfg adapters.Config, client *mongo.Client) (*Adapter, error) {
	if cfg.Database == "" {
		return nil, fmt.Errorf("%w: mongo requires a database name", adapters.ErrConnection)
	}
	a := &Adapter{}
	if err := a.init(cfg, client, false); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Adapter) init(cfg adapters.Config, client *mongo.Client, owned bool) error {
	var sink *stats.FileSink
	writers := []io.Writer{}
	if cfg.StatsLogFile != "" {
		var err error
		if sink, err = stats.NewFileSink(cfg.StatsLogFile); err != nil {
			return err
		}
		writers = append(writers, sink)
	}
	if cfg.Verbose {
		writers = append(writers, os.Stdout)
	}

	var out io.Writer
	switch len(writers) {
	case 0:
		out = nil
	case 1:
		out = writers[0]
	default:
		out = io.MultiWriter(writers...)
	}

	a.cfg = cfg
	a.client = client
	a.db = client.Database(cfg.Database)
	a.owned = owned
	a.codec = toon.NewCodec()
	a.stats = stats.NewSessionStats(cfg.StatsEnabled || cfg.Verbose || cfg.StatsLogFile != "", out)
	if sink != nil {
		a.sink = sink
	}
	return nil
}

// Close отключает клиента, если он принадлежит адаптеру
func (a *Adapter) Close(ctx context.Context) error {
	if a.sink != nil {
		a.sink.Close()
	}
	if !a.owned {
		return nil
	}
	return a.client.Disconnect(ctx)
}

// Ping проверяет доступность сервера
func (a *Adapter) Ping(ctx context.Context) error {
	if err := a.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("%w: %v", adapters.ErrConnection, err)
	}
	return nil
}

// querySpec - JSON описание выборки для поверхности Query
type querySpec struct {
	Collection string         `json:"collection"`
	Filter     map[string]any `json:"filter"`
	Projection map[string]any `json:"projection"`
	Sort       map[string]any `json:"sort"`
	Limit      int64          `json:"limit"`
}

// Query выполняет выборку, описанную JSON документом:
//
//	{"collection": "users", "filter": {"age": {"$gt": 21}}, "limit": 10}
//
// и возвращает результат в табличной нотации
func (a *Adapter) Query(ctx context.Context, query string, args ...any) (string, error) {
	var spec querySpec
	if err := json.Unmarshal([]byte(query), &spec); err != nil {
		return "", fmt.Errorf("%w: query must be a JSON object: %v", adapters.ErrQuery, err)
	}
	if spec.Collection == "" {
		return "", fmt.Errorf("%w: query is missing 'collection'", adapters.ErrQuery)
	}

	docs, err := a.find(ctx, spec)
	if err != nil {
		return "", err
	}
	return a.encode("find", docsToRowSet(docs))
}

// Execute - синоним Query
func (a *Adapter) Execute(ctx context.Context, query string, args ...any) (string, error) {
	return a.Query(ctx, query, args...)
}

// Find выполняет выборку по структурированным фильтру и проекции
// (bson.M, bson.D или совместимые значения), передаваемым драйверу
// без изменений, и возвращает результат в табличной нотации
func (a *Adapter) Find(ctx context.Context, collection string, filter, projection any) (string, error) {
	if filter == nil {
		filter = bson.D{}
	}
	opts := options.Find()
	if projection != nil {
		opts.SetProjection(projection)
	}

	cur, err := a.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return "", fmt.Errorf("%w: %v", adapters.ErrQuery, err)
	}
	defer cur.Close(ctx)

	var docs []bson.D
	if err := cur.All(ctx, &docs); err != nil {
		return "", fmt.Errorf("%w: %v", adapters.ErrQuery, err)
	}
	return a.encode("find", docsToRowSet(docs))
}

func (a *Adapter) find(ctx context.Context, spec querySpec) ([]bson.D, error) {
	opts := options.Find()
	if spec.Projection != nil {
		opts.SetProjection(spec.Projection)
	}
	if spec.Sort != nil {
		opts.SetSort(spec.Sort)
	}
	if spec.Limit > 0 {
		opts.SetLimit(spec.Limit)
	}

	filter := spec.Filter
	if filter == nil {
		filter = map[string]any{}
	}

	cur, err := a.db.Collection(spec.Collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", adapters.ErrQuery, err)
	}
	defer cur.Close(ctx)

	var docs []bson.D
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: %v", adapters.ErrQuery, err)
	}
	return docs, nil
}

// InsertAndFetch вставляет документ и возвращает его состояние после
// вставки (с назначенным _id)
func (a *Adapter) InsertAndFetch(ctx context.Context, collection string, row *record.Record, opts adapters.WriteOptions) (string, adapters.Outcome, error) {
	if err := checkConflict(opts); err != nil {
		return "", adapters.MatchNone, err
	}
	if row == nil || row.Len() == 0 {
		return "", adapters.MatchNone, fmt.Errorf("%w: empty document", adapters.ErrValue)
	}

	res, err := a.db.Collection(collection).InsertOne(ctx, recordToBSON(row))
	if err != nil {
		return "", adapters.MatchNone, fmt.Errorf("%w: %v", adapters.ErrQuery, err)
	}

	// Явное условие вызывающей стороны имеет приоритет над InsertedID
	if opts.Where != nil && opts.Where.Len() > 0 {
		docs, err := a.find(ctx, querySpec{
			Collection: collection,
			Filter:     recordToMap(opts.Where),
			Projection: writeProjection(opts.Projection),
			Limit:      opts.Limit,
		})
		if err != nil {
			return "", adapters.MatchNone, fmt.Errorf("%w: document inserted but re-read failed: %v", adapters.ErrReadBack, err)
		}
		text, err := a.encode("insert", docsToRowSet(docs))
		return text, outcomeByMatch(len(docs), 1), err
	}

	docs, err := a.findByIDs(ctx, collection, []any{res.InsertedID}, opts.Projection)
	if err != nil {
		return "", adapters.MatchNone, fmt.Errorf("%w: document inserted but re-read failed: %v", adapters.ErrReadBack, err)
	}

	text, err := a.encode("insert", docsToRowSet(docs))
	return text, outcomeByCount(len(docs), 1), err
}

// InsertManyAndFetch вставляет документы и возвращает их состояние
// после вставки
func (a *Adapter) InsertManyAndFetch(ctx context.Context, collection string, rows []*record.Record, opts adapters.WriteOptions) (string, adapters.Outcome, error) {
	if err := checkConflict(opts); err != nil {
		return "", adapters.MatchNone, err
	}
	if len(rows) == 0 {
		return "", adapters.MatchNone, fmt.Errorf("%w: no documents to insert", adapters.ErrValue)
	}

	docs := make([]any, len(rows))
	for i, row := range rows {
		docs[i] = recordToBSON(row)
	}

	res, err := a.db.Collection(collection).InsertMany(ctx, docs)
	if err != nil {
		return "", adapters.MatchNone, fmt.Errorf("%w: %v", adapters.ErrQuery, err)
	}

	if opts.Where != nil && opts.Where.Len() > 0 {
		found, err := a.find(ctx, querySpec{
			Collection: collection,
			Filter:     recordToMap(opts.Where),
			Projection: writeProjection(opts.Projection),
			Limit:      opts.Limit,
		})
		if err != nil {
			return "", adapters.MatchNone, fmt.Errorf("%w: documents inserted but re-read failed: %v", adapters.ErrReadBack, err)
		}
		text, err := a.encode("insert_many", docsToRowSet(found))
		return text, outcomeByMatch(len(found), len(rows)), err
	}

	found, err := a.findByIDs(ctx, collection, res.InsertedIDs, opts.Projection)
	if err != nil {
		return "", adapters.MatchNone, fmt.Errorf("%w: documents inserted but re-read failed: %v", adapters.ErrReadBack, err)
	}

	text, err := a.encode("insert_many", docsToRowSet(found))
	return text, outcomeByCount(len(found), len(rows)), err
}

// UpdateAndFetch обновляет документы по условию ($set) и возвращает их
// состояние после обновления
func (a *Adapter) UpdateAndFetch(ctx context.Context, collection string, values, where *record.Record, opts adapters.WriteOptions) (string, adapters.Outcome, error) {
	if values == nil || values.Len() == 0 {
		return "", adapters.MatchNone, fmt.Errorf("%w: no values to update", adapters.ErrValue)
	}
	if (where == nil || where.Len() == 0) && !opts.AllowFullTable {
		return "", adapters.MatchNone, fmt.Errorf("%w: update on %s", adapters.ErrFullTable, collection)
	}

	filter := bson.D{}
	if where != nil {
		filter = recordToBSON(where)
	}

	res, err := a.db.Collection(collection).UpdateMany(ctx, filter, bson.D{{Key: "$set", Value: recordToBSON(values)}})
	if err != nil {
		return "", adapters.MatchNone, fmt.Errorf("%w: %v", adapters.ErrQuery, err)
	}
	if res.MatchedCount == 0 {
		text, err := a.encode("update", record.NewRowSet())
		return text, adapters.MatchNone, err
	}

	// Повторная выборка по исходному условию. Поля условия, задетые
	// самим обновлением, переписываются новыми значениями, иначе
	// выборка гарантированно пуста.
	merged := record.New()
	if where != nil {
		for _, f := range where.Fields() {
			if v, ok := values.Get(f.Name); ok {
				merged.Set(f.Name, v)
			} else {
				merged.Set(f.Name, f.Value)
			}
		}
	}

	docs, err := a.find(ctx, querySpec{
		Collection: collection,
		Filter:     recordToMap(merged),
		Projection: writeProjection(opts.Projection),
	})
	if err != nil {
		return "", adapters.MatchNone, fmt.Errorf("%w: documents updated but re-read failed: %v", adapters.ErrReadBack, err)
	}

	text, err := a.encode("update", docsToRowSet(docs))
	return text, outcomeByMatch(len(docs), int(res.MatchedCount)), err
}

// Delete удаляет документы по условию и возвращает число удаленных
func (a *Adapter) Delete(ctx context.Context, collection string, where *record.Record, opts adapters.WriteOptions) (int64, error) {
	if (where == nil || where.Len() == 0) && !opts.AllowFullTable {
		return 0, fmt.Errorf("%w: delete on %s", adapters.ErrFullTable, collection)
	}

	filter := bson.D{}
	if where != nil {
		filter = recordToBSON(where)
	}

	res, err := a.db.Collection(collection).DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", adapters.ErrQuery, err)
	}
	return res.DeletedCount, nil
}

// GetSchema выводит схему коллекции по выборке документов:
// объединение полей с типами BSON значений
func (a *Adapter) GetSchema(ctx context.Context, collection string) (*adapters.TableSchema, error) {
	docs, err := a.find(ctx, querySpec{Collection: collection, Limit: schemaSampleSize})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to sample collection %s: %v", adapters.ErrSchema, collection, err)
	}

	ts := &adapters.TableSchema{Name: collection}
	seen := map[string]int{}
	for _, doc := range docs {
		for _, e := range doc {
			if i, ok := seen[e.Key]; ok {
				if ts.Columns[i].NativeType == "null" && e.Value != nil {
					ts.Columns[i].NativeType = bsonTypeName(e.Value)
				}
				continue
			}
			seen[e.Key] = len(ts.Columns)
			ts.Columns = append(ts.Columns, adapters.ColumnSchema{
				Name:         e.Key,
				NativeType:   bsonTypeName(e.Value),
				Nullable:     e.Key != "_id",
				IsPrimaryKey: e.Key == "_id",
			})
		}
	}
	return ts, nil
}

// GetAllSchemas выводит схемы всех коллекций базы
func (a *Adapter) GetAllSchemas(ctx context.Context) (map[string]*adapters.TableSchema, error) {
	names, err := a.GetTables(ctx, false)
	if err != nil {
		return nil, err
	}

	schemas := make(map[string]*adapters.TableSchema, len(names))
	for _, name := range names {
		ts, err := a.GetSchema(ctx, name)
		if err != nil {
			return nil, err
		}
		schemas[name] = ts
	}
	return schemas, nil
}

// GetTables возвращает упорядоченный список коллекций базы.
// includeViews добавляет представления.
func (a *Adapter) GetTables(ctx context.Context, includeViews bool) ([]string, error) {
	filter := bson.D{{Key: "type", Value: "collection"}}
	if includeViews {
		filter = bson.D{}
	}

	names, err := a.db.ListCollectionNames(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list collections: %v", adapters.ErrSchema, err)
	}
	sort.Strings(names)
	return names, nil
}

// Stats возвращает учет экономии токенов этой сессии
func (a *Adapter) Stats() *stats.SessionStats {
	return a.stats
}

// DatabaseType возвращает тип СУБД
func (a *Adapter) DatabaseType() string {
	return "mongo"
}

func (a *Adapter) findByIDs(ctx context.Context, collection string, ids []any, projection []string) ([]bson.D, error) {
	opts := options.Find()
	if p := writeProjection(projection); p != nil {
		opts.SetProjection(p)
	}

	cur, err := a.db.Collection(collection).Find(ctx,
		bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []bson.D
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (a *Adapter) encode(queryType string, rs *record.RowSet) (string, error) {
	text, err := a.codec.Encode(rs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", adapters.ErrValue, err)
	}

	if a.stats.Enabled() {
		jsonText := ""
		if data, err := json.Marshal(rowSetToMaps(rs)); err == nil {
			jsonText = string(data)
		}
		a.stats.Record(queryType, jsonText, text)
	}

	return text, nil
}

func checkConflict(opts adapters.WriteOptions) error {
	if opts.Conflict == "" || opts.Conflict == adapters.ConflictFail {
		return nil
	}
	return fmt.Errorf("%w: conflict strategy '%s' is not supported on mongo", adapters.ErrQuery, opts.Conflict)
}

// recordToBSON сохраняет порядок полей записи в документе
func recordToBSON(rec *record.Record) bson.D {
	d := make(bson.D, 0, rec.Len())
	for _, f := range rec.Fields() {
		d = append(d, bson.E{Key: f.Name, Value: f.Value})
	}
	return d
}

func recordToMap(rec *record.Record) map[string]any {
	m := make(map[string]any, rec.Len())
	for _, f := range rec.Fields() {
		m[f.Name] = f.Value
	}
	return m
}

// docsToRowSet приводит документы к табличному виду: колонки -
// объединение полей в порядке первого появления, отсутствующие
// значения - nil
func docsToRowSet(docs []bson.D) *record.RowSet {
	var columns []string
	index := map[string]int{}
	for _, doc := range docs {
		for _, e := range doc {
			if _, ok := index[e.Key]; !ok {
				index[e.Key] = len(columns)
				columns = append(columns, e.Key)
			}
		}
	}

	rs := record.NewRowSet(columns...)
	for _, doc := range docs {
		row := make([]any, len(columns))
		for _, e := range doc {
			row[index[e.Key]] = coerce.ToCanonical(e.Value, "")
		}
		rs.Rows = append(rs.Rows, row)
	}
	return rs
}

func rowSetToMaps(rs *record.RowSet) []map[string]any {
	out := make([]map[string]any, rs.Len())
	for i, row := range rs.Rows {
		obj := make(map[string]any, len(rs.Columns))
		for j, col := range rs.Columns {
			obj[col] = row[j]
		}
		out[i] = obj
	}
	return out
}

// outcomeByCount - исход для путей по InsertedIDs: каждый найденный
// документ гарантированно один из записанных
func outcomeByCount(found, written int) adapters.Outcome {
	switch {
	case found == 0:
		return adapters.MatchNone
	case found == 1 && written == 1:
		return adapters.MatchOne
	default:
		return adapters.MatchMany
	}
}

// outcomeByMatch - исход для выборки по условию: документов может
// найтись больше, чем записано
func outcomeByMatch(found, written int) adapters.Outcome {
	switch {
	case found == 0:
		return adapters.MatchNone
	case found > written:
		return adapters.MatchAmbiguous
	case found == 1 && written == 1:
		return adapters.MatchOne
	default:
		return adapters.MatchMany
	}
}

// writeProjection строит проекцию включения для списка колонок
// (nil, если проекция не задана)
func writeProjection(columns []string) map[string]any {
	if len(columns) == 0 {
		return nil
	}
	p := make(map[string]any, len(columns))
	for _, col := range columns {
		p[col] = 1
	}
	return p
}

func bsonTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case int32, int64, int:
		return "int"
	case float64:
		return "double"
	case primitive.ObjectID:
		return "objectId"
	case primitive.DateTime:
		return "date"
	case primitive.Decimal128:
		return "decimal"
	case primitive.Binary:
		return "binData"
	case bson.D, bson.M:
		return "object"
	case bson.A:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}
