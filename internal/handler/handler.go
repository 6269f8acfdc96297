package handler

import (
	"errors"
	"strconv"
	"time"

	"ledgersystem/internal/config"
	"ledgersystem/internal/model"
	"ledgersystem/internal/repository"
	"ledgersystem/internal/service"
	"ledgersystem/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	accountService *service.AccountService
	journalService *service.JournalService
	postingService *service.PostingService
	repostService  *service.RepostService
	closingService *service.ClosingService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	return &Handler{
		accountService: service.NewAccountService(db),
		journalService: service.NewJournalService(db),
		postingService: service.NewPostingService(db),
		repostService:  service.NewRepostService(db, rdb, cfg),
		closingService: service.NewClosingService(db, rdb, cfg),
	}
}

// fail 按错误类型翻译业务码
func fail(c *gin.Context, err error) {
	code := response.CodeServerError
	switch {
	case errors.Is(err, repository.ErrHeaderNotFound):
		code = response.CodeHeaderNotFound
	case errors.Is(err, repository.ErrLineNotFound):
		code = response.CodeLineNotFound
	case errors.Is(err, service.ErrUnknownAccount):
		code = response.CodeUnknownAccount
	case errors.Is(err, service.ErrInvalidPeriod):
		code = response.CodeInvalidPeriod
	case errors.Is(err, service.ErrUnbalanced):
		code = response.CodeUnbalanced
	case errors.Is(err, repository.ErrAccountNotFound):
		code = response.CodeAccountNotFound
	case errors.Is(err, repository.ErrAccountReferenced):
		code = response.CodeAccountReferenced
	case errors.Is(err, repository.ErrHeaderHasLines):
		code = response.CodeHeaderHasLines
	}
	response.Error(c, code, err.Error())
}

// ============================================================
// 科目相关接口
// ============================================================

// CreateAccountRequest 创建科目请求
type CreateAccountRequest struct {
	Code  string `json:"code" binding:"required"`
	Name  string `json:"name" binding:"required"`
	Side  string `json:"side" binding:"required"`
	Class string `json:"class" binding:"required"`
}

// CreateAccount 创建科目
// POST /api/v1/account/create
func (h *Handler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	account := &model.Account{
		Code:  req.Code,
		Name:  req.Name,
		Side:  req.Side,
		Class: req.Class,
	}
	if err := h.accountService.CreateAccount(c.Request.Context(), account); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, account)
}

// UpdateAccount 修改科目（编码不可变）
// POST /api/v1/account/update
func (h *Handler) UpdateAccount(c *gin.Context) {
	var req struct {
		Code  string `json:"code" binding:"required"`
		Name  string `json:"name"`
		Side  string `json:"side"`
		Class string `json:"class"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.accountService.UpdateAccount(c.Request.Context(), req.Code, req.Name, req.Side, req.Class); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"message": "科目已更新"})
}

// DeleteAccount 删除科目（被引用时拒绝）
// POST /api/v1/account/delete
func (h *Handler) DeleteAccount(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.accountService.DeleteAccount(c.Request.Context(), req.Code); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"message": "科目已删除"})
}

// GetAccount 查询科目
// GET /api/v1/account/detail?code=xxx
func (h *Handler) GetAccount(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		response.ParamError(c, "code 参数不能为空")
		return
	}

	account, err := h.accountService.GetAccount(c.Request.Context(), code)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, account)
}

// ListAccounts 科目表列表
// GET /api/v1/account/list
func (h *Handler) ListAccounts(c *gin.Context) {
	accounts, err := h.accountService.ListAccounts(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"list": accounts, "total": len(accounts)})
}

// ============================================================
// 科目映射相关接口
// ============================================================

// SetAlias 配置两段码映射
// POST /api/v1/alias/set
func (h *Handler) SetAlias(c *gin.Context) {
	var req struct {
		Code        string `json:"code" binding:"required"`
		AccountCode string `json:"account_code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.accountService.SetAlias(c.Request.Context(), req.Code, req.AccountCode); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"message": "映射已保存"})
}

// ResolveAccount 两段码解析（无映射走缺省后缀兜底）
// GET /api/v1/alias/resolve?code=xxx
func (h *Handler) ResolveAccount(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		response.ParamError(c, "code 参数不能为空")
		return
	}

	resolved, err := h.accountService.ResolveAccount(c.Request.Context(), code)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"code": code, "account_code": resolved})
}

// DeleteAlias 删除两段码映射（解析回落到缺省后缀）
// POST /api/v1/alias/delete
func (h *Handler) DeleteAlias(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.accountService.DeleteAlias(c.Request.Context(), req.Code); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"message": "映射已删除"})
}

// ListAliases 映射列表
// GET /api/v1/alias/list
func (h *Handler) ListAliases(c *gin.Context) {
	aliases, err := h.accountService.ListAliases(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"list": aliases, "total": len(aliases)})
}

// ============================================================
// 凭证相关接口
// ============================================================

// CreateVoucherRequest 整凭证保存请求
type CreateVoucherRequest struct {
	VoucherNo string             `json:"voucher_no"`
	Date      string             `json:"date" binding:"required"` // 2006-01-02
	Memo      string             `json:"memo"`
	Kind      string             `json:"kind"`
	Lines     []VoucherLineInput `json:"lines" binding:"required"`
}

// VoucherLineInput 凭证分录
type VoucherLineInput struct {
	AccountCode string          `json:"account_code" binding:"required"`
	Side        string          `json:"side" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Narration   string          `json:"narration"`
}

// CreateVoucher 整凭证保存
// POST /api/v1/voucher/create
//
// 【关键点】借贷不平衡的凭证在核心层被拒绝，凭证头、分录、过账
// 同一个事务落库，失败全量回滚
func (h *Handler) CreateVoucher(c *gin.Context) {
	var req CreateVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		response.ParamError(c, "date 参数格式应为 "+dateLayout)
		return
	}

	lines := make([]service.VoucherLineInput, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, service.VoucherLineInput{
			AccountCode: l.AccountCode,
			Side:        l.Side,
			Amount:      l.Amount,
			Narration:   l.Narration,
		})
	}

	header, err := h.journalService.CreateVoucher(c.Request.Context(), &service.CreateVoucherRequest{
		VoucherNo: req.VoucherNo,
		Date:      date,
		Memo:      req.Memo,
		Kind:      req.Kind,
		Lines:     lines,
	})
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, header)
}

// GetVoucher 查询凭证
// GET /api/v1/voucher/detail?voucher_no=xxx
func (h *Handler) GetVoucher(c *gin.Context) {
	voucherNo := c.Query("voucher_no")
	if voucherNo == "" {
		response.ParamError(c, "voucher_no 参数不能为空")
		return
	}

	voucher, err := h.journalService.GetVoucher(c.Request.Context(), voucherNo)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, voucher)
}

// ListVouchers 按期间分页查询凭证
// GET /api/v1/voucher/list?year=2024&month=1&page=1&page_size=10
func (h *Handler) ListVouchers(c *gin.Context) {
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		response.ParamError(c, "year 参数错误")
		return
	}
	month, _ := strconv.Atoi(c.DefaultQuery("month", "0"))
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	headers, total, err := h.journalService.ListVouchers(c.Request.Context(), year, month, page, pageSize)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{
		"list":      headers,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// UpdateHeader 编辑凭证头（日期跨期间会整体重新过账）
// POST /api/v1/voucher/update-header
func (h *Handler) UpdateHeader(c *gin.Context) {
	var req struct {
		HeaderID int64   `json:"header_id" binding:"required"`
		Date     *string `json:"date"`
		Memo     *string `json:"memo"`
		Kind     *string `json:"kind"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	serviceReq := &service.UpdateHeaderRequest{Memo: req.Memo, Kind: req.Kind}
	if req.Date != nil {
		date, err := time.Parse(dateLayout, *req.Date)
		if err != nil {
			response.ParamError(c, "date 参数格式应为 "+dateLayout)
			return
		}
		serviceReq.Date = &date
	}

	if err := h.journalService.UpdateHeader(c.Request.Context(), req.HeaderID, serviceReq); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"message": "凭证头已更新"})
}

// DeleteVoucher 整凭证删除（冲销全部分录）
// POST /api/v1/voucher/delete
func (h *Handler) DeleteVoucher(c *gin.Context) {
	var req struct {
		HeaderID int64 `json:"header_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.journalService.DeleteVoucher(c.Request.Context(), req.HeaderID); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"message": "凭证已删除"})
}

// ============================================================
// 分录相关接口（实时过账）
// ============================================================

// LineRequest 分录写入请求
type LineRequest struct {
	HeaderID    int64           `json:"header_id"`
	AccountCode string          `json:"account_code" binding:"required"`
	Side        string          `json:"side" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Narration   string          `json:"narration"`
}

func (r *LineRequest) toInput() *service.LineInput {
	return &service.LineInput{
		HeaderID:    r.HeaderID,
		AccountCode: r.AccountCode,
		Side:        r.Side,
		Amount:      r.Amount,
		Narration:   r.Narration,
	}
}

// InsertLine 插入分录并实时过账
// POST /api/v1/line/insert
func (h *Handler) InsertLine(c *gin.Context) {
	var req LineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if req.HeaderID == 0 {
		response.ParamError(c, "header_id 参数不能为空")
		return
	}

	lineID, err := h.postingService.InsertLine(c.Request.Context(), req.toInput())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"line_id": lineID})
}

// UpdateLine 修改分录并实时修正过账
// POST /api/v1/line/update
func (h *Handler) UpdateLine(c *gin.Context) {
	var req struct {
		LineID int64 `json:"line_id" binding:"required"`
		LineRequest
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.postingService.UpdateLine(c.Request.Context(), req.LineID, req.toInput()); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"message": "分录已更新"})
}

// DeleteLine 删除分录并冲销过账
// POST /api/v1/line/delete
func (h *Handler) DeleteLine(c *gin.Context) {
	var req struct {
		LineID int64 `json:"line_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.postingService.DeleteLine(c.Request.Context(), req.LineID); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"message": "分录已删除"})
}

// ============================================================
// 余额相关接口
// ============================================================

// GetBucket 查询余额桶
// GET /api/v1/balance/bucket?account=020.001.001&year=2024&month=1
func (h *Handler) GetBucket(c *gin.Context) {
	accountCode := c.Query("account")
	year, errY := strconv.Atoi(c.Query("year"))
	month, errM := strconv.Atoi(c.Query("month"))
	if accountCode == "" || errY != nil || errM != nil {
		response.ParamError(c, "account/year/month 参数错误")
		return
	}

	bucket, err := h.postingService.GetBucket(c.Request.Context(), accountCode, year, month)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, bucket)
}

// TrialBalance 试算平衡表
// GET /api/v1/balance/trial?year=2024&month=1
func (h *Handler) TrialBalance(c *gin.Context) {
	year, errY := strconv.Atoi(c.Query("year"))
	month, errM := strconv.Atoi(c.Query("month"))
	if errY != nil || errM != nil {
		response.ParamError(c, "year/month 参数错误")
		return
	}

	rows, err := h.closingService.TrialBalance(c.Request.Context(), year, month)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"list": rows, "total": len(rows)})
}

// ============================================================
// 批量操作接口（重算 / 月结 / 年结）
// ============================================================

// Repost 年度重算
// POST /api/v1/period/repost
//
// 【关键点】批量导入流水之后必须跑一次重算——实时过账默认桶已经
// 是对的，导入不会走实时路径
func (h *Handler) Repost(c *gin.Context) {
	var req struct {
		Year int `json:"year" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.repostService.Repost(c.Request.Context(), req.Year); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"message": "年度重算完成", "year": req.Year})
}

// CloseMonth 月结
// POST /api/v1/period/close-month
func (h *Handler) CloseMonth(c *gin.Context) {
	var req struct {
		Year  int `json:"year" binding:"required"`
		Month int `json:"month" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.closingService.CloseMonth(c.Request.Context(), req.Year, req.Month); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"message": "月结完成", "year": req.Year, "month": req.Month})
}

// CloseYear 年结
// POST /api/v1/period/close-year
func (h *Handler) CloseYear(c *gin.Context) {
	var req struct {
		Year int `json:"year" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.closingService.CloseYear(c.Request.Context(), req.Year); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"message": "年结完成", "year": req.Year})
}
