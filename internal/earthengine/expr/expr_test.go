package expr

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/mohammed-shakir/mosquito-risk/internal/core/model"
)

func invocation(t *testing.T, e *Expression, id string) (string, map[string]any) {
	t.Helper()
	v, ok := e.Values[id].(map[string]any)
	if !ok {
		t.Fatalf("value %s missing", id)
	}
	fi, ok := v["functionInvocationValue"].(map[string]any)
	if !ok {
		t.Fatalf("value %s is not an invocation: %v", id, v)
	}
	return fi["functionName"].(string), fi["arguments"].(map[string]any)
}

func refID(t *testing.T, v any) string {
	t.Helper()
	m, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("not a reference: %v", v)
	}
	id, ok := m["valueReference"].(string)
	if !ok {
		t.Fatalf("not a valueReference: %v", v)
	}
	return id
}

func TestEncode_RootIsResult(t *testing.T) {
	img := Constant(1).ToInt()
	e, err := Encode(img)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	fn, args := invocation(t, e, e.Result)
	if fn != "Image.toInt" {
		t.Fatalf("root fn=%s", fn)
	}
	inner, innerArgs := invocation(t, e, refID(t, args["value"]))
	if inner != "Image.constant" {
		t.Fatalf("inner fn=%s", inner)
	}
	c := innerArgs["value"].(map[string]any)
	if c["constantValue"] != float64(1) {
		t.Fatalf("constant=%v", c["constantValue"])
	}
}

func TestEncode_SharesIdenticalSubexpressions(t *testing.T) {
	region := Point(-80.19, 25.76).Buffer(1000).Bounds()
	s2 := LoadCollection("COPERNICUS/S2_SR_HARMONIZED").FilterBounds(region).Median()
	ndvi := s2.NormalizedDifference("B8", "B4").Clip(region)
	// built twice from scratch: structurally equal, different pointers
	s2b := LoadCollection("COPERNICUS/S2_SR_HARMONIZED").FilterBounds(Point(-80.19, 25.76).Buffer(1000).Bounds()).Median()
	ndwi := s2b.NormalizedDifference("B3", "B8").Clip(region)
	both := ndvi.Add(ndwi)

	e, err := Encode(both)
	if err != nil {
		t.Fatal(err)
	}
	counts := map[string]int{}
	for _, v := range e.Values {
		if fi, ok := v.(map[string]any)["functionInvocationValue"].(map[string]any); ok {
			counts[fi["functionName"].(string)]++
		}
	}
	if counts["reduce.median"] != 1 {
		t.Fatalf("median stored %d times, want 1", counts["reduce.median"])
	}
	if counts["Geometry.bounds"] != 1 {
		t.Fatalf("bounds stored %d times, want 1", counts["Geometry.bounds"])
	}
	if counts["Image.clip"] != 2 {
		t.Fatalf("clip stored %d times, want 2", counts["Image.clip"])
	}
}

func TestEncode_Deterministic(t *testing.T) {
	build := func() Image {
		start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
		return LoadCollection("UCSB-CHG/CHIRPS/DAILY").FilterDate(start, end).Sum().Rename("precip_mm")
	}
	a, _ := MustEncode(build()).Bytes()
	b, _ := MustEncode(build()).Bytes()
	if !bytes.Equal(a, b) {
		t.Fatalf("encoding not deterministic:\n%s\n%s", a, b)
	}
	if !strings.Contains(string(a), `"2024-01-31"`) {
		t.Fatalf("missing end date in %s", a)
	}
}

func TestEncode_MapProducesFunctionDefinition(t *testing.T) {
	col := LoadCollection("X").Map(func(img Image) Image {
		return img.UpdateMask(img.Select("QA60").BitwiseAnd(1 << 10).Eq(0))
	})
	e, err := Encode(col)
	if err != nil {
		t.Fatal(err)
	}
	fn, args := invocation(t, e, e.Result)
	if fn != "Collection.map" {
		t.Fatalf("root fn=%s", fn)
	}
	defID := refID(t, args["baseAlgorithm"])
	def, ok := e.Values[defID].(map[string]any)["functionDefinitionValue"].(map[string]any)
	if !ok {
		t.Fatalf("baseAlgorithm is not a function definition: %v", e.Values[defID])
	}
	names := def["argumentNames"].([]string)
	if len(names) != 1 || names[0] != mapVar {
		t.Fatalf("argumentNames=%v", names)
	}
	bodyFn, bodyArgs := invocation(t, e, def["body"].(string))
	if bodyFn != "Image.updateMask" {
		t.Fatalf("body fn=%s", bodyFn)
	}
	img := bodyArgs["image"].(map[string]any)
	if img["argumentReference"] != mapVar {
		t.Fatalf("image arg=%v", img)
	}

	raw, err := e.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	var back map[string]any
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("bytes are not valid JSON: %v", err)
	}
}

func TestEncode_ConstantRootStoredAsValue(t *testing.T) {
	e, err := Encode(Const(3))
	if err != nil {
		t.Fatal(err)
	}
	v := e.Values[e.Result].(map[string]any)
	if v["constantValue"] != 3 {
		t.Fatalf("root value=%v", v)
	}
}

func TestFromGeoJSON(t *testing.T) {
	pt, err := FromGeoJSON(model.PointGeometry(-80.1, 25.7))
	if err != nil || pt.Node().FunctionName() != "GeometryConstructors.Point" {
		t.Fatalf("point: %v %v", err, pt.Node().FunctionName())
	}

	poly := model.Geometry{Type: "Polygon", Coordinates: json.RawMessage(`[[[0,0],[1,0],[1,1],[0,0]]]`)}
	g, err := FromGeoJSON(poly)
	if err != nil || g.Node().FunctionName() != "GeometryConstructors.Polygon" {
		t.Fatalf("polygon: %v", err)
	}

	mp := model.Geometry{Type: "MultiPolygon", Coordinates: json.RawMessage(`[[[[0,0],[1,0],[1,1],[0,0]]]]`)}
	if g, err := FromGeoJSON(mp); err != nil || g.Node().FunctionName() != "GeometryConstructors.MultiPolygon" {
		t.Fatalf("multipolygon: %v", err)
	}

	if _, err := FromGeoJSON(model.Geometry{Type: "LineString", Coordinates: json.RawMessage(`[]`)}); err == nil {
		t.Fatalf("expected error for LineString")
	}
	if _, err := FromGeoJSON(model.Geometry{Type: "Polygon", Coordinates: json.RawMessage(`[]`)}); err == nil {
		t.Fatalf("expected error for empty polygon")
	}
}
