package controller

import (
	"log"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"bustrack_backend/internals/constants"
	studentDTO "bustrack_backend/internals/features/students/dto"
	studentService "bustrack_backend/internals/features/students/service"
	authDTO "bustrack_backend/internals/features/users/auth/dto"
	userDTO "bustrack_backend/internals/features/users/user/dto"
	helper "bustrack_backend/internals/helpers"
	authmw "bustrack_backend/internals/middlewares/auth"
)

type StudentController struct {
	DB       *gorm.DB
	Validate *validator.Validate
}

func NewStudentController(db *gorm.DB) *StudentController {
	return &StudentController{DB: db, Validate: validator.New()}
}

// schoolScope returns the tenant filter for the caller: empty for
// systemAdmin, the admin's own school otherwise.
func schoolScope(c *fiber.Ctx) (string, error) {
	actor, err := authmw.CurrentUser(c)
	if err != nil {
		return "", err
	}
	if actor.Role == constants.RoleSystemAdmin {
		return "", nil
	}
	return actor.SchoolID(), nil
}

// GET /students?search=&grade=&section=&bus=&status=&page=&per_page=
func (sc *StudentController) ListStudents(c *fiber.Ctx) error {
	schoolID, err := schoolScope(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	q := studentDTO.ListStudentsQuery{
		Search:   c.Query("search"),
		Section:  c.Query("section"),
		Bus:      c.Query("bus"),
		Status:   c.Query("status"),
		SchoolID: schoolID,
	}
	if raw := c.Query("grade"); raw != "" {
		grade, err := strconv.Atoi(raw)
		if err != nil || grade < 1 || grade > 12 {
			return helper.JsonError(c, fiber.StatusBadRequest, "Invalid grade filter")
		}
		q.Grade = &grade
	}

	paging := helper.ResolvePaging(c, 20, 100)
	students, total, err := studentService.ListStudents(sc.DB, q, paging)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	return helper.JsonList(c, "Students fetched successfully",
		userDTO.ToUserResponses(students),
		helper.BuildPaginationFromPage(total, paging.Page, paging.PerPage))
}

// GET /students/:id
func (sc *StudentController) GetStudent(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid student ID")
	}
	schoolID, err := schoolScope(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	student, err := studentService.GetStudentByID(sc.DB, id, schoolID)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonOK(c, "Student fetched successfully", userDTO.ToUserResponse(student))
}

// POST /students
func (sc *StudentController) CreateStudent(c *fiber.Ctx) error {
	var req authDTO.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	req.Role = constants.RoleStudent
	if err := sc.Validate.Struct(&req); err != nil {
		return helper.JsonValidationError(c, err)
	}

	actor, err := authmw.CurrentUser(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	student, err := studentService.CreateStudent(sc.DB, &req, actor)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	log.Printf("[INFO] student created: %s by %s", student.UserName, actor.UserName)
	return helper.JsonCreated(c, "Student created successfully", userDTO.ToUserResponse(student))
}

// PUT /students/:id
func (sc *StudentController) UpdateStudent(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid student ID")
	}

	var req studentDTO.UpdateStudentRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := sc.Validate.Struct(&req); err != nil {
		return helper.JsonValidationError(c, err)
	}

	schoolID, err := schoolScope(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	student, err := studentService.UpdateStudent(sc.DB, id, &req, schoolID)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonUpdated(c, "Student updated successfully", userDTO.ToUserResponse(student))
}

// DELETE /students/:id
func (sc *StudentController) DeleteStudent(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid student ID")
	}
	schoolID, err := schoolScope(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	if err := studentService.DeleteStudent(sc.DB, id, schoolID); err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonDeleted(c, "Student deleted successfully", nil)
}

// GET /students/my-children (parent only)
func (sc *StudentController) GetMyChildren(c *fiber.Ctx) error {
	parentID, err := authmw.CurrentUserID(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	students, err := studentService.GetStudentsByParent(sc.DB, parentID)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonOK(c, "Children fetched successfully", fiber.Map{
		"total":    len(students),
		"children": userDTO.ToUserResponses(students),
	})
}

// GET /students/parent/:parentId
func (sc *StudentController) GetStudentsByParent(c *fiber.Ctx) error {
	parentID, err := uuid.Parse(c.Params("parentId"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid parent ID")
	}

	students, err := studentService.GetStudentsByParent(sc.DB, parentID)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonOK(c, "Students fetched successfully", fiber.Map{
		"total":    len(students),
		"students": userDTO.ToUserResponses(students),
	})
}

// GET /students/bus/:busNumber
func (sc *StudentController) GetStudentsByBus(c *fiber.Ctx) error {
	schoolID, err := schoolScope(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	students, err := studentService.GetStudentsByBus(sc.DB, c.Params("busNumber"), schoolID)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonOK(c, "Bus roster fetched successfully", fiber.Map{
		"bus_number": c.Params("busNumber"),
		"total":      len(students),
		"students":   userDTO.ToUserResponses(students),
	})
}

// GET /students/grade/:grade?section=
func (sc *StudentController) GetStudentsByGrade(c *fiber.Ctx) error {
	grade, err := strconv.Atoi(c.Params("grade"))
	if err != nil || grade < 1 || grade > 12 {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid grade")
	}
	schoolID, err := schoolScope(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	students, err := studentService.GetStudentsByGrade(sc.DB, grade, c.Query("section"), schoolID)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonOK(c, "Grade roster fetched successfully", fiber.Map{
		"grade":    grade,
		"total":    len(students),
		"students": userDTO.ToUserResponses(students),
	})
}

// PUT /students/:id/parent
func (sc *StudentController) AssignParent(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid student ID")
	}

	var req studentDTO.AssignParentRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := sc.Validate.Struct(&req); err != nil {
		return helper.JsonValidationError(c, err)
	}

	schoolID, err := schoolScope(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	student, err := studentService.AssignStudentToParent(sc.DB, id, req.ParentID, schoolID)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonUpdated(c, "Parent assigned successfully", userDTO.ToUserResponse(student))
}

// DELETE /students/:id/parent
func (sc *StudentController) RemoveParent(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid student ID")
	}
	schoolID, err := schoolScope(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	student, err := studentService.RemoveStudentFromParent(sc.DB, id, schoolID)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonUpdated(c, "Parent removed successfully", userDTO.ToUserResponse(student))
}

// GET /students/stats
func (sc *StudentController) GetStudentStats(c *fiber.Ctx) error {
	schoolID, err := schoolScope(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	stats, err := studentService.GetStudentStats(sc.DB, schoolID)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonOK(c, "Student stats fetched successfully", stats)
}
