package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/marriage-hall-ledger/internal/clock"
	"github.com/iliyamo/marriage-hall-ledger/internal/database"
	"github.com/iliyamo/marriage-hall-ledger/internal/logging"
	"github.com/iliyamo/marriage-hall-ledger/internal/model"
	"github.com/iliyamo/marriage-hall-ledger/internal/utils"
	"github.com/iliyamo/marriage-hall-ledger/internal/validation"
)

// HallService registers, blocks and deletes tenants.
type HallService struct {
	tx          *database.TxRunner
	repos       Repos
	clock       clock.Clock
	bcryptCost  int
	trialMonths int
	log         logging.Logger
}

func NewHallService(tx *database.TxRunner, repos Repos, clk clock.Clock, bcryptCost, trialMonths int, log logging.Logger) *HallService {
	return &HallService{tx: tx, repos: repos, clock: clk, bcryptCost: bcryptCost, trialMonths: trialMonths, log: log}
}

type RegisterInput struct {
	HallID      int64  `json:"hall_id" validate:"gt=0"`
	Name        string `json:"name" validate:"required,max=191"`
	Phone       string `json:"phone" validate:"required,max=32"`
	Email       string `json:"email" validate:"required,email,max=191"`
	Address     string `json:"address" validate:"max=512"`
	UserID      string `json:"user_id" validate:"required,min=3,max=64"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	OwnerName   string `json:"owner_name" validate:"required,max=191"`
	Designation string `json:"designation" validate:"max=64"`
}

// Register creates the hall, its owner account and the owner's profile in
// one transaction.  The hall starts with a free trial period.
func (s *HallService) Register(ctx context.Context, in RegisterInput) (h *model.Hall, err error) {
	defer func() { err = finish(s.log, "register_hall", err) }()

	if err := validation.Struct(in); err != nil {
		return nil, invalid(err)
	}
	hash, err := utils.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	due := now.AddDate(0, s.trialMonths, 0)
	h = &model.Hall{
		HallID:    in.HallID,
		Name:      in.Name,
		Phone:     in.Phone,
		Email:     in.Email,
		Address:   in.Address,
		IsActive:  true,
		DueDate:   &due,
		CreatedAt: now,
		UpdatedAt: now,
	}
	owner := &model.User{
		HallID:       in.HallID,
		UserID:       in.UserID,
		PasswordHash: hash,
		Role:         model.RoleOwner,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	profile := &model.Admin{
		HallID:      in.HallID,
		UserID:      in.UserID,
		Name:        in.OwnerName,
		Designation: in.Designation,
		Phone:       in.Phone,
		Email:       in.Email,
	}
	err = s.tx.Run(ctx, func(tx *sql.Tx) error {
		if err := s.repos.Halls.CreateTx(ctx, tx, h); err != nil {
			return err
		}
		if err := s.repos.Users.CreateTx(ctx, tx, owner); err != nil {
			return err
		}
		return s.repos.Users.CreateAdminTx(ctx, tx, profile)
	})
	if database.IsDuplicate(err) {
		return nil, conflictf("hall %d is already registered", in.HallID)
	}
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logging.Fields{"hall_id": h.HallID, "due_date": due.Format(time.DateOnly)}).Info("hall registered")
	return h, nil
}

type BlockInput struct {
	HallID int64  `json:"-" validate:"gt=0"`
	Reason string `json:"reason" validate:"required,max=512"`
}

// Block deactivates a hall.  Its users can no longer log in and ledger
// writes are refused until it is unblocked.
func (s *HallService) Block(ctx context.Context, in BlockInput) (err error) {
	defer func() { err = finish(s.log, "block_hall", err) }()

	if err := validation.Struct(in); err != nil {
		return invalid(err)
	}
	now := s.clock.Now()
	err = s.tx.Run(ctx, func(tx *sql.Tx) error {
		if _, err := s.repos.Halls.LockTx(ctx, tx, in.HallID); err != nil {
			return err
		}
		return s.repos.Halls.BlockTx(ctx, tx, in.HallID, in.Reason, now)
	})
	if err != nil {
		return err
	}
	s.log.WithFields(logging.Fields{"hall_id": in.HallID, "reason": in.Reason}).Warn("hall blocked")
	return nil
}

func (s *HallService) Unblock(ctx context.Context, hallID int64) (err error) {
	defer func() { err = finish(s.log, "unblock_hall", err) }()

	err = s.tx.Run(ctx, func(tx *sql.Tx) error {
		if _, err := s.repos.Halls.LockTx(ctx, tx, hallID); err != nil {
			return err
		}
		return s.repos.Halls.UnblockTx(ctx, tx, hallID)
	})
	if err != nil {
		return err
	}
	s.log.WithField("hall_id", hallID).Info("hall unblocked")
	return nil
}

// Delete removes the hall and every row that belongs to it.  It returns the
// number of rows removed per table.
func (s *HallService) Delete(ctx context.Context, hallID int64) (removed map[string]int64, err error) {
	defer func() { err = finish(s.log, "delete_hall", err) }()

	err = s.tx.Run(ctx, func(tx *sql.Tx) error {
		var err error
		removed, err = s.repos.Halls.DeleteCascadeTx(ctx, tx, hallID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logging.Fields{"hall_id": hallID, "removed": removed}).Warn("hall deleted")
	return removed, nil
}
