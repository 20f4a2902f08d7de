// Package odm is a small document-model layer: kinds with required and
// admissible attribute names, documents persisted to a docstore collection,
// and a TTL cache kept coherent with the store on save, lookup and delete.
//
//	reg := odm.NewRegistry(odm.WithResolver(resolver), odm.WithLogger(logger))
//	people, _ := reg.Init("Persona", collection, c, []string{"nombre"}, []string{"edad", "direccion"})
//	p, _ := people.New(ctx, map[string]any{"nombre": "Alberto"})
//	_ = p.Set(ctx, "direccion", "Calle de la Reina, 28004 Madrid")
//	_ = p.Save(ctx)
//	snap, ok, _ := people.FindByID(ctx, p.ID())
package odm
