package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ragpro-go/internal/apperr"
	"ragpro-go/internal/chunker"
	"ragpro-go/internal/config"
	"ragpro-go/internal/model"
	"ragpro-go/internal/repository"
	"ragpro-go/internal/vectorindex"
	"ragpro-go/pkg/lock"
	"ragpro-go/pkg/log"
	"ragpro-go/pkg/tasks"
	"ragpro-go/pkg/tika"
)

// ObjectStore 是协调器对对象存储的窄依赖。
type ObjectStore interface {
	Put(ctx context.Context, objectName string, reader io.Reader, size int64) error
	Remove(ctx context.Context, objectName string) error
}

// CompactionQueue 是协调器对清理任务队列的窄依赖。
type CompactionQueue interface {
	EnqueueCompaction(ctx context.Context, task tasks.CompactionTask) error
}

// Coordinator 是文档生命周期协调器，串联创建
// （存储 → 提取 → 分块 → 向量化索引 → 目录）与拆除
// （删文件 → 删向量 → 删目录行）两条路径，并保证目录与向量索引
// 对"文档是否存在"达成一致。任一步骤失败都会回滚已完成的副作用。
type Coordinator struct {
	extractor tika.Extractor
	indexer   *Indexer
	index     vectorindex.Index
	store     ObjectStore
	docRepo   repository.DocumentRepository
	locker    lock.Locker
	queue     CompactionQueue
	splitter  *chunker.Splitter
	cfg       config.PipelineConfig
}

// NewCoordinator 创建一个新的 Coordinator 实例。
func NewCoordinator(
	extractor tika.Extractor,
	indexer *Indexer,
	index vectorindex.Index,
	store ObjectStore,
	docRepo repository.DocumentRepository,
	locker lock.Locker,
	queue CompactionQueue,
	splitter *chunker.Splitter,
	cfg config.PipelineConfig,
) *Coordinator {
	return &Coordinator{
		extractor: extractor,
		indexer:   indexer,
		index:     index,
		store:     store,
		docRepo:   docRepo,
		locker:    locker,
		queue:     queue,
		splitter:  splitter,
		cfg:       cfg,
	}
}

// Ingest 执行一篇文档的完整创建流程并返回目录记录。
// 校验失败在任何副作用发生之前返回。
func (c *Coordinator) Ingest(ctx context.Context, ownerID uint, fileName string, file io.Reader) (*model.Document, error) {
	if err := c.validateFileName(fileName); err != nil {
		return nil, err
	}

	documentID := uuid.NewString()
	log.Infof("[Coordinator] 开始处理文档, DocumentID: %s, FileName: %s, OwnerID: %d", documentID, fileName, ownerID)

	// 同一文档的生命周期操作必须串行，避免写入与删除交错留下孤儿记录
	release, err := c.locker.Acquire(ctx, documentID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "获取文档锁失败", err)
	}
	defer release()

	// 1. 读入文件内容并写入对象存储
	buf := new(bytes.Buffer)
	size, err := buf.ReadFrom(file)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "读取上传内容失败", err)
	}
	if size == 0 {
		return nil, apperr.New(apperr.KindValidation, "文件内容为空")
	}

	objectName := fmt.Sprintf("uploads/%d/%s_%s", ownerID, documentID, fileName)
	log.Infof("[Coordinator] 步骤1: 写入对象存储, Object: %s, Size: %d", objectName, size)
	if err := c.store.Put(ctx, objectName, bytes.NewReader(buf.Bytes()), size); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "写入对象存储失败", err)
	}

	// 2. 提取文本
	log.Info("[Coordinator] 步骤2: 提取文本内容")
	text, err := c.extractor.ExtractText(ctx, bytes.NewReader(buf.Bytes()), fileName)
	if err != nil {
		c.removeObject(ctx, objectName)
		return nil, apperr.Wrap(apperr.KindExtraction, "文本提取失败", err)
	}
	if strings.TrimSpace(text) == "" {
		c.removeObject(ctx, objectName)
		return nil, apperr.New(apperr.KindExtraction, "提取的文本内容为空")
	}

	// 3. 分块
	chunks := c.splitter.Split(text)
	log.Infof("[Coordinator] 步骤3: 文本分块完成, 共 %d 个分块", len(chunks))
	if len(chunks) == 0 {
		c.removeObject(ctx, objectName)
		return nil, apperr.New(apperr.KindExtraction, "未生成任何文本分块")
	}

	// 4. 向量化并带租户标签写入索引
	log.Info("[Coordinator] 步骤4: 向量化并写入索引")
	count, err := c.indexer.Index(ctx, ownerID, documentID, fileName, chunks)
	if err != nil {
		// Upsert 以单条记录为原子单位，失败时可能已有部分记录可见，
		// 必须清掉再回滚对象
		c.purgeVectors(ctx, ownerID, documentID, objectName, "ingest index rollback")
		c.removeObject(ctx, objectName)
		return nil, err
	}

	// 5. 写入目录行。ChunkCount 等于刚写入索引的记录条数
	doc := &model.Document{
		ID:         documentID,
		OwnerID:    ownerID,
		FileName:   fileName,
		ObjectName: objectName,
		ChunkCount: count,
	}
	if err := c.docRepo.Create(doc); err != nil {
		c.purgeVectors(ctx, ownerID, documentID, objectName, "ingest catalog rollback")
		c.removeObject(ctx, objectName)
		return nil, apperr.Wrap(apperr.KindInternal, "写入文档目录失败", err)
	}

	log.Infof("[Coordinator] 文档处理成功, DocumentID: %s, Chunks: %d", documentID, count)
	return doc, nil
}

// Teardown 执行一篇文档的完整拆除流程。
// 顺序固定：删除存储文件（忽略已缺失）→ 删除向量记录 → 删除目录行；
// 三步全部成功才算删除成功。向量删除失败时目录行保留，
// 错误标记为一致性缺陷并入队清理任务重试。
func (c *Coordinator) Teardown(ctx context.Context, documentID string, requester *model.User) error {
	release, err := c.locker.Acquire(ctx, documentID)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "获取文档锁失败", err)
	}
	defer release()

	doc, err := c.findForRequester(documentID, requester)
	if err != nil {
		return err
	}

	log.Infof("[Coordinator] 开始删除文档, DocumentID: %s, OwnerID: %d", documentID, doc.OwnerID)

	// 1. 删除存储文件。对象已缺失时对象存储返回成功
	if err := c.store.Remove(ctx, doc.ObjectName); err != nil {
		return apperr.Wrap(apperr.KindInternal, "删除存储文件失败", err)
	}

	// 2. 删除向量记录
	if err := c.index.DeleteByDocument(ctx, doc.OwnerID, documentID); err != nil {
		log.Errorw("向量删除失败，目录与索引暂时不一致，已入队清理任务",
			"documentId", documentID, "ownerId", doc.OwnerID, "error", err)
		c.enqueueCompaction(ctx, doc, "teardown vector delete failed")
		return apperr.Retryable(apperr.KindConsistency, "删除向量记录失败", err)
	}

	// 3. 删除目录行
	if err := c.docRepo.Delete(documentID); err != nil {
		log.Errorw("目录行删除失败，索引已清空而目录仍有记录，已入队清理任务",
			"documentId", documentID, "ownerId", doc.OwnerID, "error", err)
		c.enqueueCompaction(ctx, doc, "teardown catalog delete failed")
		return apperr.Retryable(apperr.KindConsistency, "删除文档目录行失败", err)
	}

	log.Infof("[Coordinator] 文档删除成功, DocumentID: %s", documentID)
	return nil
}

// Compact 处理一条清理任务：重新执行拆除的向量与目录步骤。
// 由 Kafka 消费者在后台调用，幂等。
func (c *Coordinator) Compact(ctx context.Context, task tasks.CompactionTask) error {
	release, err := c.locker.Acquire(ctx, task.DocumentID)
	if err != nil {
		return err
	}
	defer release()

	if err := c.index.DeleteByDocument(ctx, task.OwnerID, task.DocumentID); err != nil {
		return fmt.Errorf("清理向量记录失败: %w", err)
	}

	// 目录行可能已被删掉，也可能是拆除在目录步骤失败后留下的
	if _, err := c.docRepo.FindByIDAndOwner(task.DocumentID, task.OwnerID); err == nil {
		if err := c.docRepo.Delete(task.DocumentID); err != nil {
			return fmt.Errorf("清理目录行失败: %w", err)
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	log.Infof("[Coordinator] 清理任务完成, DocumentID: %s", task.DocumentID)
	return nil
}

// validateFileName 在任何副作用之前校验文件类型。
func (c *Coordinator) validateFileName(fileName string) error {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" {
		return apperr.New(apperr.KindValidation, "文件缺少扩展名")
	}
	for _, supported := range c.cfg.SupportedExtensions {
		if ext == supported {
			return nil
		}
	}
	return apperr.Newf(apperr.KindValidation, "不支持的文件类型: %s", ext)
}

// findForRequester 按请求者身份定位文档：属主只能看到自己的记录，
// 管理员可以跨属主定位。
func (c *Coordinator) findForRequester(documentID string, requester *model.User) (*model.Document, error) {
	var doc *model.Document
	var err error
	if requester.IsAdmin() {
		doc, err = c.docRepo.FindByID(documentID)
	} else {
		doc, err = c.docRepo.FindByIDAndOwner(documentID, requester.ID)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "文档不存在或不属于该用户")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "查询文档目录失败", err)
	}
	return doc, nil
}

// purgeVectors 尽力清除某文档的全部向量记录；失败则记录一致性缺陷并入队重试。
func (c *Coordinator) purgeVectors(ctx context.Context, ownerID uint, documentID, objectName, reason string) {
	if err := c.index.DeleteByDocument(ctx, ownerID, documentID); err != nil {
		log.Errorw("回滚向量记录失败，索引中可能残留孤儿记录，已入队清理任务",
			"documentId", documentID, "ownerId", ownerID, "error", err)
		c.enqueueCompaction(ctx, &model.Document{ID: documentID, OwnerID: ownerID, ObjectName: objectName}, reason)
	}
}

// removeObject 尽力删除对象存储中的文件，失败只记日志。
func (c *Coordinator) removeObject(ctx context.Context, objectName string) {
	if err := c.store.Remove(ctx, objectName); err != nil {
		log.Warnf("回滚存储对象失败, Object: %s, err: %v", objectName, err)
	}
}

// enqueueCompaction 把文档入队清理任务，入队失败只能记日志兜底。
func (c *Coordinator) enqueueCompaction(ctx context.Context, doc *model.Document, reason string) {
	if c.queue == nil {
		return
	}
	task := tasks.CompactionTask{
		DocumentID: doc.ID,
		OwnerID:    doc.OwnerID,
		ObjectName: doc.ObjectName,
		Reason:     reason,
	}
	if err := c.queue.EnqueueCompaction(ctx, task); err != nil {
		log.Errorw("入队清理任务失败", "documentId", doc.ID, "error", err)
	}
}
