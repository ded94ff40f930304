package protocat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProto = `
syntax = "proto3";

package shop.v1;

option go_package = "example.com/shop/gen/shoppb";

import "google/protobuf/timestamp.proto";

// Catalog operations.
service CatalogService {
  rpc GetProduct(GetProductRequest) returns (GetProductResponse);
  rpc ListProducts(ListProductsRequest) returns (stream ListProductsResponse);
  rpc CreateProduct(CreateProductRequest) returns (CreateProductResponse) {}
  rpc ArchiveProduct(ArchiveProductRequest) returns (ArchiveProductResponse);
}

message GetProductRequest {
  int64 product_id = 1;
}

message GetProductResponse {
  Product product = 1;
}

message Product {
  int64 product_id = 1;
  string sku = 2;
  string name = 3;
  optional string description = 4;
  repeated string tags = 5;
  map<string, string> attributes = 6;
}

message ListProductsRequest {}

message ListProductsResponse {
  repeated Product products = 1;
}

message CreateProductRequest {
  string sku = 1;
  string name = 2;
}

message CreateProductResponse {
  int64 product_id = 1;
}

message ArchiveProductRequest {
  int64 product_id = 1;
}

message ArchiveProductResponse {}
`

func parseSample(t *testing.T) *Catalog {
	t.Helper()
	f, err := Parse(strings.NewReader(sampleProto), "shop.proto")
	require.NoError(t, err)
	return NewCatalog([]File{*f})
}

func TestParseFileLevel(t *testing.T) {
	f, err := Parse(strings.NewReader(sampleProto), "shop.proto")
	require.NoError(t, err)

	assert.Equal(t, "shop.v1", f.Package)
	assert.Equal(t, "example.com/shop/gen/shoppb", f.GoPackage)
	assert.Equal(t, []string{"google/protobuf/timestamp.proto"}, f.Imports)
	assert.Len(t, f.Services, 1)
	assert.Len(t, f.Messages, 9)
}

func TestParseService(t *testing.T) {
	c := parseSample(t)

	svc, ok := c.Services["CatalogService"]
	require.True(t, ok)
	require.Len(t, svc.Methods, 4)

	get := c.Methods["CatalogService.GetProduct"]
	require.NotNil(t, get)
	assert.Equal(t, "GetProductRequest", get.RequestType)
	assert.Equal(t, "GetProductResponse", get.ResponseType)
	assert.False(t, get.ServerStreaming)

	list := c.Methods["CatalogService.ListProducts"]
	require.NotNil(t, list)
	assert.True(t, list.ServerStreaming)
}

func TestParseFields(t *testing.T) {
	c := parseSample(t)

	prod := c.Messages["Product"]
	require.NotNil(t, prod)
	require.Len(t, prod.Fields, 6)

	id := prod.Field("product_id")
	require.NotNil(t, id)
	assert.Equal(t, "int64", id.Type)
	assert.Equal(t, 1, id.Number)
	assert.False(t, id.Nullable())

	desc := prod.Field("description")
	require.NotNil(t, desc)
	assert.True(t, desc.Optional)
	assert.True(t, desc.Nullable())

	tags := prod.Field("tags")
	require.NotNil(t, tags)
	assert.True(t, tags.Repeated)

	attrs := prod.Field("attributes")
	require.NotNil(t, attrs)
	assert.True(t, attrs.IsMap)
	assert.Equal(t, "string", attrs.MapKey)

	scalars := prod.ScalarFields()
	assert.Len(t, scalars, 5) // everything except the map
}

func TestNestedMessageField(t *testing.T) {
	c := parseSample(t)
	resp := c.Messages["GetProductResponse"]
	require.NotNil(t, resp)
	require.Len(t, resp.Fields, 1)
	assert.True(t, resp.Fields[0].Message)
	assert.Equal(t, "Product", resp.Fields[0].Type)
}

func TestClassifyMethodName(t *testing.T) {
	cases := map[string]OperationClass{
		"GetProduct":     ClassRead,
		"ListProducts":   ClassRead,
		"FindOrders":     ClassRead,
		"SearchUsers":    ClassRead,
		"CreateProduct":  ClassCreate,
		"AddItem":        ClassCreate,
		"InsertRow":      ClassCreate,
		"UpdateProduct":  ClassUpdate,
		"SetStatus":      ClassUpdate,
		"ModifyOrder":    ClassUpdate,
		"DeleteProduct":  ClassDelete,
		"RemoveItem":     ClassDelete,
		"ArchiveProduct": ClassExec,
		"ProcessBatch":   ClassExec,
	}
	for name, want := range cases {
		assert.Equal(t, want, ClassifyMethodName(name), name)
	}
}

func TestGoType(t *testing.T) {
	assert.Equal(t, "int64", GoType("int64"))
	assert.Equal(t, "float64", GoType("double"))
	assert.Equal(t, "[]byte", GoType("bytes"))
	assert.Equal(t, "*Product", GoType("Product"))
}
