package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/inventory"
	"github.com/somabem/erp/core/user"
)

type inventoryApi struct {
	svc *inventory.Service
}

func registerInventoryAPI(g *echo.Group, s *Server) {
	api := inventoryApi{svc: s.deps.InventorySvc}
	read := s.perm(core.ModuleInventory, user.OpRead)
	update := s.perm(core.ModuleInventory, user.OpUpdate)

	g.POST("/products", api.create, s.perm(core.ModuleInventory, user.OpCreate))
	g.GET("/products", api.query, read)
	g.GET("/products/restock", api.restock, read)
	g.GET("/products/:id", api.retrieve, read)
	g.PUT("/products/:id", api.update, update)
	g.PUT("/products/:id/image", api.uploadImage, update)
	g.POST("/products/:id/movements", api.adjust, update)
	g.GET("/products/:id/movements", api.movements, read)
}

func (api *inventoryApi) create(ctx echo.Context) error {
	var data inventory.NewProduct
	if err := bind(ctx, &data); err != nil {
		return err
	}
	p, err := api.svc.Create(ctx.Request().Context(), data)
	return created(ctx, p, err)
}

func (api *inventoryApi) query(ctx echo.Context) error {
	q := newQuery(ctx)
	filter := inventory.QueryFilter{
		Search:     q.String("search"),
		Category:   q.String("category"),
		ActiveOnly: q.Bool("active"),
		Restock:    q.Bool("restock"),
	}
	if err := q.Err(); err != nil {
		return err
	}
	ps, err := api.svc.Query(ctx.Request().Context(), filter)
	return list(ctx, ps, err)
}

func (api *inventoryApi) restock(ctx echo.Context) error {
	ps, err := api.svc.RestockCandidates(ctx.Request().Context())
	return list(ctx, ps, err)
}

func (api *inventoryApi) retrieve(ctx echo.Context) error {
	p, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	return ok(ctx, p, err)
}

func (api *inventoryApi) update(ctx echo.Context) error {
	var data inventory.UpdateProduct
	if err := bind(ctx, &data); err != nil {
		return err
	}
	p, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	return ok(ctx, p, err)
}

// uploadImage stores the `image` multipart file of a product, with its thumbnail.
func (api *inventoryApi) uploadImage(ctx echo.Context) error {
	fh, err := ctx.FormFile("image")
	if err != nil {
		return core.NewFieldError("image", "an image file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded image")
	}
	defer f.Close()

	p, err := api.svc.UploadImage(ctx.Request().Context(), ctx.Param("id"), f)
	return ok(ctx, p, err)
}

func (api *inventoryApi) adjust(ctx echo.Context) error {
	var data inventory.AdjustStock
	if err := bind(ctx, &data); err != nil {
		return err
	}
	m, err := api.svc.AdjustStock(ctx.Request().Context(), ctx.Param("id"), data)
	return created(ctx, m, err)
}

func (api *inventoryApi) movements(ctx echo.Context) error {
	ms, err := api.svc.Movements(ctx.Request().Context(), ctx.Param("id"))
	return list(ctx, ms, err)
}
