package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/user"
)

type userApi struct {
	svc  *user.Service
	auth *TokenIssuer
}

func registerUserAPI(g *echo.Group, s *Server) {
	api := userApi{svc: s.deps.UserSvc, auth: s.auth}

	ug := g.Group("/users")

	// un-authed endpoints
	// TODO: rate limit `/login`, `/password-reset` & `/password-reset-confirm`
	ug.POST("/login", api.login)
	ug.POST("/change-password", api.changePassword)
	ug.POST("/password-reset", api.resetPassword)
	ug.POST("/password-reset-confirm", api.confirmPasswordReset)
	ug.POST("/password-strength", api.passwordStrength)

	// authed endpoints
	ag := ug.Group("", s.auth.Middleware(), actorMiddleware)
	ag.POST("/token-refresh", api.refreshToken)
	ag.GET("/me", api.me)
	ag.GET("/roles", api.queryRoles)
	ag.POST("", api.create, s.perm(core.ModuleUsers, user.OpCreate))
	ag.GET("", api.query, s.perm(core.ModuleUsers, user.OpRead))
	ag.DELETE("", api.destroyMultiple, s.perm(core.ModuleUsers, user.OpDelete))

	// detail endpoints
	dg := ag.Group("/:id")
	dg.GET("", api.retrieve, api.selfOr(s.perm(core.ModuleUsers, user.OpRead)))
	dg.PUT("", api.update, api.selfOr(s.perm(core.ModuleUsers, user.OpUpdate)))
	dg.DELETE("", api.destroy, s.perm(core.ModuleUsers, user.OpDelete))
	dg.PUT("/unlock", api.unlock, s.perm(core.ModuleUsers, user.OpUpdate))
	dg.GET("/permissions", api.permissions, api.selfOr(s.perm(core.ModuleUsers, user.OpRead)))
	dg.PUT("/permissions", api.setPermissions, s.perm(core.ModuleUsers, user.OpUpdate))
}

// Handlers

func (api *userApi) login(ctx echo.Context) error {
	var creds user.Credentials
	if err := bind(ctx, &creds); err != nil {
		return err
	}
	usr, err := api.svc.Authenticate(withIP(ctx), creds)
	if err != nil {
		return err
	}
	return api.session(ctx, usr)
}

func (api *userApi) changePassword(ctx echo.Context) error {
	var data user.ChangePassword
	if err := bind(ctx, &data); err != nil {
		return err
	}
	usr, err := api.svc.ChangePassword(withIP(ctx), data)
	if err != nil {
		return err
	}
	return api.session(ctx, usr)
}

func (api *userApi) session(ctx echo.Context, usr user.User) error {
	token, err := api.auth.Token(usr)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: usr})
}

func (api *userApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); err != nil &&
		!(core.IsNotFound(err) || core.IsAuthError(err)) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *userApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := bind(ctx, &data); err != nil {
		return err
	}
	if err := api.svc.ResetPassword(withIP(ctx), data); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *userApi) passwordStrength(ctx echo.Context) error {
	var data PasswordStrengthRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	resp := PasswordStrengthResponse{Strength: user.PasswordStrength(data.Password)}
	if err := user.ValidatePassword(data.Password, user.User{}); err != nil {
		resp.Error = err.Error()
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	token, err := api.auth.Refresh(claims, usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: usr})
}

func (api *userApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := bind(ctx, &data); err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	usr, err := api.svc.Create(ctx.Request().Context(), data, &ctxUsr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) query(ctx echo.Context) error {
	q := newQuery(ctx)
	filter := &user.QueryFilter{
		Search:      q.String("search"),
		Roles:       q.Strings("role"),
		IsActive:    q.BoolPtr("is_active"),
		CreatedFrom: q.Time("created_from"),
		CreatedTo:   q.Time("created_to"),
	}
	if err := q.Err(); err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	return list(ctx, users, err)
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) update(ctx echo.Context) error {
	var data user.UpdateUser
	if err := bind(ctx, &data); err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	if ctxUsr.ID == ctx.Param("id") && !ctxUsr.IsAdmin() {
		// `IsActive` and `Roles` can only be changed by admin
		// `Username` and `Email` can only be changed by admin for now
		if data.IsActive != nil || data.Roles != nil || data.Username != "" || data.Email != "" {
			return errHttpForbidden
		}
	}
	usr, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data, &ctxUsr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) destroy(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	// Say No to Suicide! ctxUser cannot delete themselves
	if ctx.Param("id") == ctxUsr.ID {
		return errHttpForbidden
	}
	target, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	if !user.CanGrant(ctxUsr, target.Roles) {
		return errHttpForbidden
	}
	if err := api.svc.Delete(ctx.Request().Context(), target.ID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) destroyMultiple(ctx echo.Context) error {
	ids := ctx.QueryParams()["id"]
	if len(ids) == 0 {
		return ctx.NoContent(http.StatusNoContent)
	}
	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == ctxUsr.ID {
			return errHttpForbidden
		}
	}
	if err := api.svc.Delete(ctx.Request().Context(), ids...); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) unlock(ctx echo.Context) error {
	usr, err := api.svc.Unlock(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) permissions(ctx echo.Context) error {
	perms, err := api.svc.Permissions(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	grants, err := api.svc.Grants(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	if grants == nil {
		grants = []user.Permission{}
	}
	return ctx.JSON(http.StatusOK, PermissionsResponse{Effective: perms, Grants: grants})
}

func (api *userApi) setPermissions(ctx echo.Context) error {
	var grants []user.PermissionGrant
	if err := bind(ctx, &grants); err != nil {
		return err
	}
	perms, err := api.svc.SetGrants(ctx.Request().Context(), ctx.Param("id"), grants)
	return list(ctx, perms, err)
}

// selfOr lets a user reach their own record, and others through guard.
func (api *userApi) selfOr(guard echo.MiddlewareFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		guarded := guard(next)
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if claims.Subject == ctx.Param("id") {
				return next(ctx)
			}
			return guarded(ctx)
		}
	}
}

// withIP returns the request context carrying the client IP, for the audit of anonymous calls.
func withIP(ctx echo.Context) context.Context {
	req := ctx.Request()
	actor := core.ActorFrom(req.Context())
	actor.IP = ctx.RealIP()
	return core.WithActor(req.Context(), actor)
}

type (
	LoginResponse struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}

	PasswordResetRequest struct {
		Email string `json:"email"`
	}

	PasswordStrengthRequest struct {
		Password string `json:"password"`
	}

	PasswordStrengthResponse struct {
		Strength int    `json:"strength"`
		Error    string `json:"error,omitempty"`
	}

	PermissionsResponse struct {
		Effective user.Permissions  `json:"effective"`
		Grants    []user.Permission `json:"grants"`
	}
)
