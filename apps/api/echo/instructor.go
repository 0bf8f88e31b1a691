package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/grading"
	"github.com/trezcool/elimu/core/user"
)

type instructorApi struct {
	catalogSvc catalog.Service
	gradingSvc grading.Service
	validate   *validator.Validate
}

func registerInstructorAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := instructorApi{
		catalogSvc: opts.CatalogSvc,
		gradingSvc: opts.GradingSvc,
		validate:   opts.Validate,
	}

	ig := g.Group("/instructor", jwt, roleMiddleware(user.RoleInstructor))

	ig.GET("/courses", api.listCourses)
	ig.POST("/courses", api.createCourse)
	ig.GET("/courses/:id", api.retrieveCourse)
	ig.PUT("/courses/:id", api.updateCourse)
	ig.DELETE("/courses/:id", api.destroyCourse)
	ig.POST("/courses/:id/assignments", api.createAssignment)
	ig.POST("/courses/:id/tests", api.createTest)

	ig.PUT("/assignments/:id", api.updateAssignment)
	ig.DELETE("/assignments/:id", api.destroyAssignment)
	ig.GET("/assignments/:id/submissions", api.assignmentRoster)
	ig.POST("/assignments/:id/grade/:studentId", api.gradeAssignment)

	ig.PUT("/tests/:id", api.updateTest)
	ig.DELETE("/tests/:id", api.destroyTest)
	ig.GET("/tests/:id/attempts", api.testRoster)
	ig.POST("/tests/:id/grade/:studentId", api.gradeTest)
}

// Courses

func (api *instructorApi) listCourses(ctx echo.Context) error {
	uid, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	courses, err := api.catalogSvc.CoursesByOwner(ctx.Request().Context(), uid)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []catalog.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *instructorApi) createCourse(ctx echo.Context) error {
	uid, err := contextUserID(ctx)
	if err != nil {
		return err
	}

	var data catalog.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	course, err := api.catalogSvc.CreateCourse(ctx.Request().Context(), uid, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, course)
}

func (api *instructorApi) retrieveCourse(ctx echo.Context) error {
	uid, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	content, err := api.catalogSvc.GetCourseWithContent(ctx.Request().Context(), uid, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course content")
	}
	if content.Course.CreatedBy != uid {
		return errors.WithStack(catalog.ErrForbidden)
	}
	return ctx.JSON(http.StatusOK, content)
}

func (api *instructorApi) updateCourse(ctx echo.Context) error {
	uid, err := contextUserID(ctx)
	if err != nil {
		return err
	}

	var data catalog.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	course, err := api.catalogSvc.UpdateCourse(ctx.Request().Context(), uid, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, course)
}

func (api *instructorApi) destroyCourse(ctx echo.Context) error {
	uid, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	if err := api.catalogSvc.DeleteCourse(ctx.Request().Context(), uid, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Assignments

func (api *instructorApi) createAssignment(ctx echo.Context) error {
	uid, err := contextUserID(ctx)
	if err != nil {
		return err
	}

	var data catalog.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.catalogSvc.CreateAssignment(ctx.Request().Context(), uid, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *instructorApi) updateAssignment(ctx echo.Context) error {
	uid, err := contextUserID(ctx)
	if err != nil {
		return err
	}

	var data catalog.UpdateAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssignment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	a, err := api.catalogSvc.UpdateAssignment(ctx.Request().Context(), uid, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating assignment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *instructorApi) destroyAssignment(ctx echo.Context) error {
	uid, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	if err := api.catalogSvc.DeleteAssignment(ctx.Request().Context(), uid, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *instructorApi) assignmentRoster(ctx echo.Context) error {
	uid, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	roster, err := api.gradingSvc.AssignmentRoster(ctx.Request().Context(), uid, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting assignment roster")
	}
	if roster == nil {
		roster = []grading.AssignmentRosterEntry{}
	}
	return ctx.JSON(http.StatusOK, roster)
}

func (api *instructorApi) gradeAssignment(ctx echo.Context) error {
	uid, err := contextUserID(ctx)
	if err != nil {
		return err
	}

	var data grading.GradeInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sub, err := api.gradingSvc.GradeAssignment(ctx.Request().Context(), uid, ctx.Param("id"), ctx.Param("studentId"), *data.Score)
	if err != nil {
		return errors.Wrap(err, "grading assignment")
	}
	return ctx.JSON(http.StatusOK, sub)
}

// Tests

func (api *instructorApi) createTest(ctx echo.Context) error {
	uid, err := contextUserID(ctx)
	if err != nil {
		return err
	}

	var data catalog.NewTest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.catalogSvc.CreateTest(ctx.Request().Context(), uid, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating test")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *instructorApi) updateTest(ctx echo.Context) error {
	uid, err := contextUserID(ctx)
	if err != nil {
		return err
	}

	var data catalog.UpdateTest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.catalogSvc.UpdateTest(ctx.Request().Context(), uid, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating test")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *instructorApi) destroyTest(ctx echo.Context) error {
	uid, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	if err := api.catalogSvc.DeleteTest(ctx.Request().Context(), uid, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting test")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *instructorApi) testRoster(ctx echo.Context) error {
	uid, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	roster, err := api.gradingSvc.TestRoster(ctx.Request().Context(), uid, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting test roster")
	}
	if roster == nil {
		roster = []grading.TestRosterEntry{}
	}
	return ctx.JSON(http.StatusOK, roster)
}

func (api *instructorApi) gradeTest(ctx echo.Context) error {
	uid, err := contextUserID(ctx)
	if err != nil {
		return err
	}

	var data grading.GradeInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	attempt, err := api.gradingSvc.GradeTest(ctx.Request().Context(), uid, ctx.Param("id"), ctx.Param("studentId"), *data.Score)
	if err != nil {
		return errors.Wrap(err, "grading test")
	}
	return ctx.JSON(http.StatusOK, attempt)
}
