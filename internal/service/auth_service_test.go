package service

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"aisuite/internal/model/user"
)

func TestAuthService(t *testing.T) {
	Convey("注册与登录", t, func() {
		users := newFakeUsers()
		workspaces := newFakeWorkspaces()
		svc := NewAuthService(users, workspaces, "test-secret", time.Hour, credits("10"))
		ctx := context.Background()

		res, err := svc.Register(ctx, RegisterInput{
			Username: "alice",
			Email:    "Alice@Example.com",
			Password: "s3cret-pass",
		})
		So(err, ShouldBeNil)
		So(res.User.Email, ShouldEqual, "alice@example.com")
		So(res.User.Password, ShouldNotEqual, "s3cret-pass")
		So(res.User.WorkspaceID, ShouldEqual, res.Workspace.ID)
		So(res.Workspace.OwnerID, ShouldEqual, res.User.ID)
		So(workspaces.credit(res.Workspace.ID).String(), ShouldEqual, "10")

		Convey("重复注册", func() {
			_, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "other@example.com", Password: "x"})
			So(err, ShouldEqual, ErrUserAlreadyExists)

			_, err = svc.Register(ctx, RegisterInput{Username: "bob", Email: "alice@example.com", Password: "x"})
			So(err, ShouldEqual, ErrEmailTaken)
		})

		Convey("用户名或邮箱登录，token 携带工作空间", func() {
			for _, login := range []string{"alice", "ALICE@example.com"} {
				out, err := svc.Login(ctx, login, "s3cret-pass")
				So(err, ShouldBeNil)
				So(out.TokenType, ShouldEqual, "Bearer")
				So(out.ExpiresIn, ShouldEqual, 3600)

				claims, err := svc.ValidateToken(out.AccessToken)
				So(err, ShouldBeNil)
				So(claims.UserID, ShouldEqual, res.User.ID)
				So(claims.WorkspaceID, ShouldEqual, res.Workspace.ID)
			}
		})

		Convey("密码错误与禁用用户", func() {
			_, err := svc.Login(ctx, "alice", "wrong")
			So(err, ShouldEqual, ErrInvalidPassword)

			_, err = svc.Login(ctx, "nobody", "x")
			So(err, ShouldEqual, ErrUserNotFound)

			res.User.Status = user.StatusBanned
			_, err = svc.Login(ctx, "alice", "s3cret-pass")
			So(err, ShouldEqual, ErrUserBanned)
		})
	})

	Convey("不设初始积分时工作空间不限额", t, func() {
		workspaces := newFakeWorkspaces()
		svc := NewAuthService(newFakeUsers(), workspaces, "test-secret", time.Hour, nil)
		res, err := svc.Register(context.Background(), RegisterInput{Username: "carol", Email: "carol@example.com", Password: "pw"})
		So(err, ShouldBeNil)
		So(res.Workspace.CreditCount, ShouldBeNil)
		So(res.User.Role, ShouldEqual, user.RoleUser)
	})

	Convey("指定角色创建管理员", t, func() {
		svc := NewAuthService(newFakeUsers(), newFakeWorkspaces(), "test-secret", time.Hour, nil)
		res, err := svc.Register(context.Background(), RegisterInput{Username: "root", Email: "root@example.com", Password: "pw", Role: user.RoleAdmin})
		So(err, ShouldBeNil)
		So(res.User.Role, ShouldEqual, user.RoleAdmin)
	})
}
