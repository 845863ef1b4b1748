package expr

import (
	"time"
)

const dateLayout = "2006-01-02"

type Image struct{ n *Node }

type ImageCollection struct{ n *Node }

func (i Image) Node() *Node           { return i.n }
func (c ImageCollection) Node() *Node { return c.n }

// ImageFrom wraps a node known to evaluate to an image.
func ImageFrom(n *Node) Image { return Image{n: n} }

func LoadCollection(id string) ImageCollection {
	return ImageCollection{n: Invoke("ImageCollection.load", map[string]*Node{"id": Const(id)})}
}

// FilterDate keeps images whose system:time_start lies in [start, end).
func (c ImageCollection) FilterDate(start, end time.Time) ImageCollection {
	dr := Invoke("DateRange", map[string]*Node{
		"start": Const(start.Format(dateLayout)),
		"end":   Const(end.Format(dateLayout)),
	})
	f := Invoke("Filter.dateRangeContains", map[string]*Node{
		"leftValue":  dr,
		"rightField": Const("system:time_start"),
	})
	return c.filter(f)
}

func (c ImageCollection) FilterBounds(g Geometry) ImageCollection {
	f := Invoke("Filter.intersects", map[string]*Node{
		"leftField":  Const(".all"),
		"rightValue": g.n,
	})
	return c.filter(f)
}

func (c ImageCollection) filter(f *Node) ImageCollection {
	return ImageCollection{n: Invoke("Collection.filter", map[string]*Node{
		"collection": c.n,
		"filter":     f,
	})}
}

const mapVar = "_MAPPING_VAR_0_0"

// Map applies fn to every image of the collection.
func (c ImageCollection) Map(fn func(Image) Image) ImageCollection {
	body := fn(Image{n: ArgRef(mapVar)})
	return ImageCollection{n: Invoke("Collection.map", map[string]*Node{
		"collection":    c.n,
		"baseAlgorithm": FuncDef([]string{mapVar}, body.n),
	})}
}

func (c ImageCollection) Select(bands ...string) ImageCollection {
	return c.Map(func(i Image) Image { return i.Select(bands...) })
}

func (c ImageCollection) reduce(fn string) Image {
	return Image{n: Invoke(fn, map[string]*Node{"collection": c.n})}
}

func (c ImageCollection) Median() Image { return c.reduce("reduce.median") }
func (c ImageCollection) Mean() Image   { return c.reduce("reduce.mean") }
func (c ImageCollection) Sum() Image    { return c.reduce("reduce.sum") }

func Constant(v float64) Image {
	return Image{n: Invoke("Image.constant", map[string]*Node{"value": Const(v)})}
}

func (i Image) Select(bands ...string) Image {
	return Image{n: Invoke("Image.select", map[string]*Node{
		"input":         i.n,
		"bandSelectors": Const(bands),
	})}
}

func (i Image) NormalizedDifference(a, b string) Image {
	return Image{n: Invoke("Image.normalizedDifference", map[string]*Node{
		"input":     i.n,
		"bandNames": Const([]string{a, b}),
	})}
}

func (i Image) Rename(names ...string) Image {
	return Image{n: Invoke("Image.rename", map[string]*Node{
		"input": i.n,
		"names": Const(names),
	})}
}

func (i Image) Clip(g Geometry) Image {
	return Image{n: Invoke("Image.clip", map[string]*Node{
		"input":    i.n,
		"geometry": g.n,
	})}
}

func (i Image) binary(fn string, other Image) Image {
	return Image{n: Invoke(fn, map[string]*Node{"image1": i.n, "image2": other.n})}
}

func (i Image) Multiply(v float64) Image { return i.binary("Image.multiply", Constant(v)) }
func (i Image) Subtract(v float64) Image { return i.binary("Image.subtract", Constant(v)) }
func (i Image) Gt(v float64) Image       { return i.binary("Image.gt", Constant(v)) }
func (i Image) Gte(v float64) Image      { return i.binary("Image.gte", Constant(v)) }
func (i Image) Lte(v float64) Image      { return i.binary("Image.lte", Constant(v)) }
func (i Image) Eq(v float64) Image       { return i.binary("Image.eq", Constant(v)) }
func (i Image) BitwiseAnd(v int) Image {
	return i.binary("Image.bitwiseAnd", Constant(float64(v)))
}

func (i Image) Add(o Image) Image { return i.binary("Image.add", o) }
func (i Image) And(o Image) Image { return i.binary("Image.and", o) }
func (i Image) Max(o Image) Image { return i.binary("Image.max", o) }

func (i Image) UpdateMask(mask Image) Image {
	return Image{n: Invoke("Image.updateMask", map[string]*Node{"image": i.n, "mask": mask.n})}
}

func (i Image) ToInt() Image {
	return Image{n: Invoke("Image.toInt", map[string]*Node{"value": i.n})}
}
