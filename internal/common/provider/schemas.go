// internal/common/provider/schemas.go
package provider

import "capacity-engine/internal/common/validation"

var employeesSchema = validation.MustCompile("employees", `{
  "type": "object",
  "required": ["employees"],
  "properties": {
    "employees": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "first_name": {"type": ["string", "null"]},
          "last_name": {"type": ["string", "null"]},
          "is_active": {"type": "boolean"}
        }
      }
    },
    "page": {"type": "integer"},
    "total_pages": {"type": "integer"}
  }
}`)

var bookingWindowsSchema = validation.MustCompile("booking_windows", `{
  "type": "object",
  "required": ["booking_windows"],
  "properties": {
    "booking_windows": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["start_time", "end_time"],
        "properties": {
          "start_time": {"type": "string", "format": "date-time"},
          "end_time": {"type": "string", "format": "date-time"},
          "date": {"type": "string"},
          "available": {"type": "boolean"},
          "employee_ids": {"type": ["array", "null"], "items": {"type": "string"}}
        }
      }
    }
  }
}`)

var jobsSchema = validation.MustCompile("jobs", `{
  "type": "object",
  "required": ["jobs"],
  "properties": {
    "jobs": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "work_status"],
        "properties": {
          "id": {"type": "string"},
          "assigned_employee_ids": {"type": ["array", "null"], "items": {"type": "string"}},
          "scheduled_start": {"type": ["string", "null"]},
          "scheduled_end": {"type": ["string", "null"]},
          "work_status": {"type": "string"},
          "work_started_at": {"type": ["string", "null"]},
          "work_completed_at": {"type": ["string", "null"]},
          "arrival_window": {"type": ["object", "null"]}
        }
      }
    },
    "page": {"type": "integer"},
    "total_pages": {"type": "integer"}
  }
}`)
