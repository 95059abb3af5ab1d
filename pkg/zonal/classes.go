package zonal

import "sort"

// UnknownClass names codes missing from the class table.
const UnknownClass = "Unknown"

// Class describes one land-use code.
type Class struct {
	Code  int
	Name  string
	Group string // optional aggregation key
}

// DefaultClasses returns the MapBiomas Indonesia legend.
func DefaultClasses() []Class {
	return []Class{
		{Code: 3, Name: "Forest formation", Group: "forest"},
		{Code: 5, Name: "Mangrove", Group: "forest"},
		{Code: 9, Name: "Planted forest", Group: "forest"},
		{Code: 13, Name: "Other natural vegetation"},
		{Code: 21, Name: "Other agriculture", Group: "agriculture"},
		{Code: 24, Name: "Urban area"},
		{Code: 25, Name: "Other non-vegetation"},
		{Code: 30, Name: "Mining pit"},
		{Code: 31, Name: "Aquaculture", Group: "agriculture"},
		{Code: 33, Name: "River / Lake / Ocean"},
		{Code: 35, Name: "Oil palm", Group: "agriculture"},
		{Code: 40, Name: "Rice paddy", Group: "agriculture"},
		{Code: 76, Name: "Peat swamp forest", Group: "forest"},
	}
}

// ClassTable looks up class names and groups by code.
type ClassTable struct {
	byCode map[int]Class
}

// NewClassTable indexes classes by code. Later entries win.
func NewClassTable(classes []Class) ClassTable {
	t := ClassTable{byCode: make(map[int]Class, len(classes))}
	for _, c := range classes {
		t.byCode[c.Code] = c
	}
	return t
}

// Name returns the class name for code, or UnknownClass.
func (t ClassTable) Name(code int) string {
	if c, ok := t.byCode[code]; ok && c.Name != "" {
		return c.Name
	}
	return UnknownClass
}

// Groups returns every group name and its member codes, sorted by name.
func (t ClassTable) Groups() (names []string, codes map[string][]int) {
	codes = make(map[string][]int)
	for code, c := range t.byCode {
		if c.Group == "" {
			continue
		}
		codes[c.Group] = append(codes[c.Group], code)
	}
	for name := range codes {
		sort.Ints(codes[name])
		names = append(names, name)
	}
	sort.Strings(names)
	return names, codes
}
