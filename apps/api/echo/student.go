package echoapi

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/grading"
	"github.com/trezcool/elimu/core/user"
)

const submissionField = "submission"

type studentApi struct {
	conf       *core.Config
	logger     core.Logger
	catalogSvc catalog.Service
	gradingSvc grading.Service
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := studentApi{
		conf:       opts.Conf,
		logger:     opts.Logger,
		catalogSvc: opts.CatalogSvc,
		gradingSvc: opts.GradingSvc,
	}
	studentOnly := roleMiddleware(user.RoleStudent)

	cg := g.Group("/courses", jwt, studentOnly)
	cg.GET("", api.listCourses)
	cg.GET("/:id", api.retrieveCourse)
	cg.POST("/:id/enroll", api.enroll)
	cg.POST("/:id/unenroll", api.unenroll)

	ag := g.Group("/assignments", jwt, studentOnly)
	ag.GET("/:id/submission", api.retrieveSubmission)
	ag.POST("/:id/submit", api.submitAssignment)

	tg := g.Group("/tests", jwt, studentOnly)
	tg.GET("/:id", api.retrieveTest)
	tg.GET("/:id/attempt", api.retrieveAttempt)
	tg.POST("/:id/submit", api.submitTest)

	g.GET("/dashboard", api.dashboard, jwt, studentOnly)
}

// Handlers

func (api *studentApi) listCourses(ctx echo.Context) error {
	courses, err := api.catalogSvc.QueryCourses(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []catalog.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *studentApi) retrieveCourse(ctx echo.Context) error {
	uid, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	content, err := api.catalogSvc.GetCourseWithContent(ctx.Request().Context(), uid, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course content")
	}
	return ctx.JSON(http.StatusOK, content)
}

func (api *studentApi) enroll(ctx echo.Context) error {
	uid, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	enrollment, err := api.gradingSvc.Enroll(ctx.Request().Context(), uid, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusCreated, enrollment)
}

func (api *studentApi) unenroll(ctx echo.Context) error {
	uid, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	if err := api.gradingSvc.Unenroll(ctx.Request().Context(), uid, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "unenrolling")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *studentApi) retrieveSubmission(ctx echo.Context) error {
	uid, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	sub, err := api.gradingSvc.AssignmentResult(ctx.Request().Context(), uid, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting assignment result")
	}
	return ctx.JSON(http.StatusOK, sub)
}

// submitAssignment accepts a JSON text submission or a multipart form whose
// "submission" field is either a file or a text value.
func (api *studentApi) submitAssignment(ctx echo.Context) error {
	uid, err := contextUserID(ctx)
	if err != nil {
		return err
	}

	var payload, upload string
	if strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, err := ctx.FormFile(submissionField)
		switch err {
		case nil:
			if upload, err = saveUpload(api.conf.Server.UploadDir, assignmentUploads, fh); err != nil {
				return err
			}
			payload = upload
		case http.ErrMissingFile:
			payload = ctx.FormValue(submissionField)
		default:
			return errors.Wrap(err, "reading form file")
		}
	} else {
		var data SubmitAssignmentRequest
		if err := ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to SubmitAssignmentRequest")
		}
		payload = data.Submission
	}

	sub, err := api.gradingSvc.SubmitAssignment(ctx.Request().Context(), uid, ctx.Param("id"), payload)
	if err != nil {
		if upload != "" {
			if rmErr := os.Remove(filepath.Join(api.conf.Server.UploadDir, filepath.FromSlash(upload))); rmErr != nil {
				api.logger.Warn("removing rejected upload", rmErr, map[string]interface{}{"upload": upload})
			}
		}
		return errors.Wrap(err, "submitting assignment")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *studentApi) retrieveTest(ctx echo.Context) error {
	t, err := api.catalogSvc.GetStudentTest(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting test")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *studentApi) submitTest(ctx echo.Context) error {
	uid, err := contextUserID(ctx)
	if err != nil {
		return err
	}

	var data grading.SubmitTestInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitTestInput")
	}

	attempt, err := api.gradingSvc.SubmitTest(ctx.Request().Context(), uid, ctx.Param("id"), data.Answers)
	if err != nil {
		return errors.Wrap(err, "submitting test")
	}
	return ctx.JSON(http.StatusCreated, attempt)
}

func (api *studentApi) retrieveAttempt(ctx echo.Context) error {
	uid, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	attempt, err := api.gradingSvc.TestResult(ctx.Request().Context(), uid, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting test result")
	}
	return ctx.JSON(http.StatusOK, attempt)
}

func (api *studentApi) dashboard(ctx echo.Context) error {
	uid, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	dash, err := api.gradingSvc.Dashboard(ctx.Request().Context(), uid)
	if err != nil {
		return errors.Wrap(err, "building dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}

type SubmitAssignmentRequest struct {
	Submission string `json:"submission"`
}
