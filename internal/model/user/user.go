package user

// Role decides which view of the product a user gets.
type Role string

const (
	RoleUser       Role = "user"
	RoleConsultant Role = "consultant"
)

// User is a read-only account record.
type User struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Email             string             `json:"email"`
	Role              Role               `json:"role"`
	Profile           *Profile           `json:"profile,omitempty"`
	ConsultantProfile *ConsultantProfile `json:"consultantProfile,omitempty"`
}

// Profile is the health context a patient shares with the assistant.
type Profile struct {
	Age            string `json:"age,omitempty"`
	MedicalHistory string `json:"medicalHistory,omitempty"`
	FoodAllergies  string `json:"foodAllergies,omitempty"`
	Height         string `json:"height,omitempty"`
	Weight         string `json:"weight,omitempty"`
	BloodType      string `json:"bloodType,omitempty"` // 例如 "O+"
	ConsultantID   string `json:"consultantId,omitempty"`
}

// ConsultantProfile describes a practitioner.
type ConsultantProfile struct {
	Qualifications  string `json:"qualifications"`
	Specialization  string `json:"specialization"`
	ConsultationFee string `json:"consultationFee"`
}

// Seed provides the demo accounts: two patients linked to one consultant.
func Seed() []User {
	return []User{
		{
			ID:    "1",
			Name:  "John Doe",
			Email: "user@example.com",
			Role:  RoleUser,
			Profile: &Profile{
				Age:            "30",
				MedicalHistory: "None",
				FoodAllergies:  "Peanuts",
				Height:         "175 cm",
				Weight:         "70 kg",
				BloodType:      "O+",
				ConsultantID:   "2",
			},
		},
		{
			ID:    "2",
			Name:  "Dr. Anjali Sharma",
			Email: "consultant@example.com",
			Role:  RoleConsultant,
			ConsultantProfile: &ConsultantProfile{
				Qualifications:  "B.A.M.S.",
				Specialization:  "Panchakarma",
				ConsultationFee: "50",
			},
		},
		{
			ID:    "3",
			Name:  "Jane Smith",
			Email: "patient.two@example.com",
			Role:  RoleUser,
			Profile: &Profile{
				Age:            "45",
				MedicalHistory: "Diabetes Type 2",
				FoodAllergies:  "None",
				Height:         "160 cm",
				Weight:         "65 kg",
				BloodType:      "A-",
				ConsultantID:   "2",
			},
		},
	}
}
