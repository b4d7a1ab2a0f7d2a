package sim

import (
	"context"
	"fmt"
	"testing"

	"go.viam.com/test"

	"github.com/makolon/og-vlm/logging"
)

func TestCatalog(t *testing.T) {
	objects := []Object{
		{Name: "apple_1"},
		{Name: "basket_1"},
		{Name: "apple_1"},
		{Name: ""},
		{Name: "floor"},
	}
	test.That(t, Catalog(objects, 10), test.ShouldResemble, []string{"apple_1", "basket_1", "floor"})
	test.That(t, Catalog(objects, 2), test.ShouldResemble, []string{"apple_1", "basket_1"})
	test.That(t, Catalog(nil, 10), test.ShouldBeEmpty)

	many := make([]Object, 0, 100)
	for i := 0; i < 100; i++ {
		many = append(many, Object{Name: fmt.Sprintf("obj_%d", i)})
	}
	catalog := Catalog(many, 0)
	test.That(t, len(catalog), test.ShouldEqual, DefaultMaxCatalog)
	test.That(t, catalog[0], test.ShouldEqual, "obj_0")
}

func TestFindObject(t *testing.T) {
	objects := []Object{{Name: "apple_1"}, {Name: "apple_10"}}
	obj, ok := FindObject(objects, "apple_10")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, obj.Name, test.ShouldEqual, "apple_10")
	_, ok = FindObject(objects, "apple")
	test.That(t, ok, test.ShouldBeFalse)
}

func TestRegistry(t *testing.T) {
	constructor := func(ctx context.Context, settings Settings, logger logging.Logger) (Environment, error) {
		return nil, fmt.Errorf("no engine for %s", settings.Activity)
	}
	RegisterBackend("test-registry", constructor)
	test.That(t, func() { RegisterBackend("test-registry", constructor) }, test.ShouldPanic)
	test.That(t, func() { RegisterBackend("test-nil", nil) }, test.ShouldPanic)
	test.That(t, LookupBackend("test-registry"), test.ShouldNotBeNil)
	test.That(t, LookupBackend("missing"), test.ShouldBeNil)
	test.That(t, Backends(), test.ShouldContain, "test-registry")

	logger := logging.NewTestLogger(t)
	_, err := New(context.Background(), "missing", Settings{}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unknown simulation backend")

	_, err = New(context.Background(), "test-registry", Settings{Activity: "pick_up_trash"}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no engine for pick_up_trash")
}
