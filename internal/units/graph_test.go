package units_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/simonjwright/ada-language-server/internal/units"
)

func TestGraphUpsert(t *testing.T) {
	g := units.NewGraph()
	stamp := time.Unix(1000, 0)

	g.Upsert("App", "app.adb", stamp, []string{"Ada.Text_Io", "Util"})
	g.Upsert("Util", "util.ads", stamp, nil)

	if got := g.Imports("App"); !reflect.DeepEqual(got, []string{"Ada.Text_Io", "Util"}) {
		t.Errorf("Imports(App) = %v", got)
	}
	if got := g.Importers("Util"); !reflect.DeepEqual(got, []string{"App"}) {
		t.Errorf("Importers(Util) = %v", got)
	}
	if got := g.Units(); !reflect.DeepEqual(got, []string{"App", "Util"}) {
		t.Errorf("Units() = %v", got)
	}

	info, ok := g.Lookup("App")
	if !ok || info.Path != "app.adb" || !info.Modified.Equal(stamp) {
		t.Errorf("Lookup(App) = %+v, %v", info, ok)
	}
	if !g.Timestamp("App").Equal(stamp) {
		t.Errorf("Timestamp(App) = %v", g.Timestamp("App"))
	}
	if !g.Timestamp("Unknown").IsZero() {
		t.Errorf("Timestamp(Unknown) = %v, want zero", g.Timestamp("Unknown"))
	}
}

func TestGraphUpsertReplacesEdges(t *testing.T) {
	g := units.NewGraph()
	stamp := time.Unix(1000, 0)

	g.Upsert("App", "app.adb", stamp, []string{"Old"})
	g.Upsert("App", "app.adb", stamp, []string{"New"})

	if got := g.Imports("App"); !reflect.DeepEqual(got, []string{"New"}) {
		t.Errorf("Imports(App) = %v", got)
	}
	if got := g.Importers("Old"); got != nil {
		t.Errorf("Importers(Old) = %v, want none", got)
	}
	if got := g.Importers("New"); !reflect.DeepEqual(got, []string{"App"}) {
		t.Errorf("Importers(New) = %v", got)
	}
}

func TestGraphSelfImportIgnored(t *testing.T) {
	g := units.NewGraph()
	g.Upsert("App", "app.adb", time.Now(), []string{"App"})

	if got := g.Imports("App"); got != nil {
		t.Errorf("Imports(App) = %v, want none", got)
	}
}

func TestGraphDelete(t *testing.T) {
	g := units.NewGraph()
	stamp := time.Unix(1000, 0)

	g.Upsert("A", "a.ads", stamp, []string{"B"})
	g.Upsert("B", "b.ads", stamp, []string{"C"})
	g.Delete("B")

	if _, ok := g.Lookup("B"); ok {
		t.Error("deleted unit still present")
	}
	if got := g.Importers("C"); got != nil {
		t.Errorf("Importers(C) = %v, want none after delete", got)
	}
	// Incoming edges survive: A still names B.
	if got := g.Imports("A"); !reflect.DeepEqual(got, []string{"B"}) {
		t.Errorf("Imports(A) = %v", got)
	}
	if got := g.Importers("B"); !reflect.DeepEqual(got, []string{"A"}) {
		t.Errorf("Importers(B) = %v", got)
	}
}
